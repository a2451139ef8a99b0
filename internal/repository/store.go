package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Querier interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (domain.User, error)
	GetUserByID(ctx context.Context, id int64) (domain.User, error)
	GetUserByAccount(ctx context.Context, account string) (domain.User, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, arg domain.Category) (domain.Category, error)
	ListProducts(ctx context.Context, f ProductFilter, page domain.Page) ([]domain.Product, error)
	CountProducts(ctx context.Context, f ProductFilter) (int64, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListSkusByProduct(ctx context.Context, productID int64) ([]domain.ProductSku, error)
	CreateProduct(ctx context.Context, arg domain.Product) (domain.Product, error)
	CreateSku(ctx context.Context, arg domain.ProductSku) (domain.ProductSku, error)
	UpdateProduct(ctx context.Context, arg domain.Product) (domain.Product, error)
	IncrementProductViews(ctx context.Context, id int64) error
	DecrementProductStock(ctx context.Context, id int64, qty int) (int64, error)
	DecrementSkuStock(ctx context.Context, id int64, qty int) (int64, error)
	RestoreProductStock(ctx context.Context, id int64, qty int) error
	RestoreSkuStock(ctx context.Context, id int64, qty int) error

	CreateCoupon(ctx context.Context, arg domain.Coupon) (domain.Coupon, error)
	UpdateCoupon(ctx context.Context, arg domain.Coupon) (domain.Coupon, error)
	GetCoupon(ctx context.Context, id int64) (domain.Coupon, error)
	ListCoupons(ctx context.Context, status string, page domain.Page) ([]domain.Coupon, error)
	CountCoupons(ctx context.Context, status string) (int64, error)
	ListAvailableCoupons(ctx context.Context, now time.Time) ([]domain.Coupon, error)
	DeactivateCoupon(ctx context.Context, id int64) (int64, error)
	InsertUserCoupon(ctx context.Context, userID, couponID int64) (int64, error)
	IncrementClaimed(ctx context.Context, couponID int64) (domain.Coupon, error)
	IncrementRedeemed(ctx context.Context, couponID int64) (int64, error)
	GetUserCoupon(ctx context.Context, id, userID int64) (domain.UserCoupon, error)
	GetUserCouponByCoupon(ctx context.Context, userID, couponID int64) (domain.UserCoupon, error)
	ListUserCoupons(ctx context.Context, userID int64, status string) ([]domain.UserCoupon, error)
	RedeemUserCoupon(ctx context.Context, arg RedeemUserCouponParams) (int64, error)

	ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error)
	GetAddress(ctx context.Context, id, userID int64) (domain.Address, error)
	CreateAddress(ctx context.Context, arg domain.Address) (domain.Address, error)
	UpdateAddress(ctx context.Context, arg domain.Address) (domain.Address, error)
	DeleteAddress(ctx context.Context, id, userID int64) (int64, error)
	ClearDefaultAddress(ctx context.Context, userID, keepID int64) error

	InsertOrder(ctx context.Context, arg InsertOrderParams) (domain.Order, error)
	InsertOrderItem(ctx context.Context, arg domain.OrderItem) (domain.OrderItem, error)
	GetOrderForUser(ctx context.Context, id, userID int64) (domain.Order, error)
	LockOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrderItems(ctx context.Context, orderIDs []int64) ([]domain.OrderItem, error)
	ListOrders(ctx context.Context, f OrderFilter, page domain.Page) ([]domain.Order, error)
	CountOrders(ctx context.Context, f OrderFilter) (int64, error)
	UpdateOrderStatus(ctx context.Context, arg domain.Order) (domain.Order, error)
}

type Store interface {
	Querier
	ExecTx(ctx context.Context, fn func(Querier) error) error
}

type store struct {
	*Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) Store {
	return &store{
		Queries: NewQueries(pool),
		pool:    pool,
	}
}

// ExecTx runs fn inside a read-committed transaction. Stock and coupon
// counters are only ever changed through conditional updates, so read
// committed is enough to keep them from going past their bounds.
func (s *store) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	q := s.Queries.WithTx(tx)
	if err := fn(q); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx err: %w, rollback err: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type CreateUserParams struct {
	Phone        string
	Username     *string
	Email        *string
	PasswordHash string
	Nickname     string
	Role         domain.Role
}

type ProductFilter struct {
	CategoryID *int64
	Keyword    string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	// ActiveOnly hides inactive products from storefront listings.
	ActiveOnly bool
}

type OrderFilter struct {
	UserID  *int64
	Status  string
	Keyword string
}

type RedeemUserCouponParams struct {
	ID      int64
	UserID  int64
	OrderID int64
	UsedAt  time.Time
}

type InsertOrderParams struct {
	OrderNo      string
	UserID       int64
	Quote        domain.Quote
	Address      domain.AddressSnapshot
	Remark       *string
	UserCouponID *int64
}
