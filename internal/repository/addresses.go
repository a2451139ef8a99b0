package repository

import (
	"context"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
)

const addressColumns = `id, user_id, name, phone, province, city, district, detail, is_default, created_at`

func scanAddress(row pgx.Row) (domain.Address, error) {
	var a domain.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Phone, &a.Province, &a.City, &a.District, &a.Detail, &a.IsDefault, &a.CreatedAt)
	return a, err
}

const listAddresses = `SELECT ` + addressColumns + ` FROM addresses
WHERE user_id = $1
ORDER BY is_default DESC, created_at DESC, id DESC`

func (q *Queries) ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error) {
	rows, err := q.db.Query(ctx, listAddresses, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Address, error) {
		return scanAddress(row)
	})
}

const getAddress = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

func (q *Queries) GetAddress(ctx context.Context, id, userID int64) (domain.Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getAddress, id, userID))
}

const createAddress = `INSERT INTO addresses (user_id, name, phone, province, city, district, detail, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + addressColumns

func (q *Queries) CreateAddress(ctx context.Context, arg domain.Address) (domain.Address, error) {
	row := q.db.QueryRow(ctx, createAddress,
		arg.UserID, arg.Name, arg.Phone, arg.Province, arg.City, arg.District, arg.Detail, arg.IsDefault,
	)
	return scanAddress(row)
}

const updateAddress = `UPDATE addresses
SET name = $3, phone = $4, province = $5, city = $6, district = $7, detail = $8, is_default = $9
WHERE id = $1 AND user_id = $2
RETURNING ` + addressColumns

func (q *Queries) UpdateAddress(ctx context.Context, arg domain.Address) (domain.Address, error) {
	row := q.db.QueryRow(ctx, updateAddress,
		arg.ID, arg.UserID, arg.Name, arg.Phone, arg.Province, arg.City, arg.District, arg.Detail, arg.IsDefault,
	)
	return scanAddress(row)
}

func (q *Queries) DeleteAddress(ctx context.Context, id, userID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) ClearDefaultAddress(ctx context.Context, userID, keepID int64) error {
	_, err := q.db.Exec(ctx, `UPDATE addresses SET is_default = false WHERE user_id = $1 AND is_default AND id <> $2`, userID, keepID)
	return err
}
