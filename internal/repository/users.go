package repository

import (
	"context"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, phone, email, password_hash, nickname, role, status, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Phone, &u.Email, &u.PasswordHash,
		&u.Nickname, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

const createUser = `INSERT INTO users (phone, username, email, password_hash, nickname, role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (domain.User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.Phone, arg.Username, arg.Email, arg.PasswordHash, arg.Nickname, arg.Role,
	)
	return scanUser(row)
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const getUserByAccount = `SELECT ` + userColumns + ` FROM users
WHERE username = $1 OR email = $1 OR phone = $1
LIMIT 1`

func (q *Queries) GetUserByAccount(ctx context.Context, account string) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByAccount, account))
}
