package repository

import (
	"context"
	"fmt"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, order_no, user_id, status, total_amount, discount_amount, shipping_fee, pay_amount,
    address_data, remark, user_coupon_id, stock_released, paid_at, shipped_at, completed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNo, &o.UserID, &o.Status, &o.TotalAmount, &o.DiscountAmount, &o.ShippingFee, &o.PayAmount,
		&o.Address, &o.Remark, &o.UserCouponID, &o.StockReleased, &o.PaidAt, &o.ShippedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// InsertOrder returns pgx.ErrNoRows when the order number is already taken so
// the caller can retry with a fresh one without aborting the transaction.
const insertOrder = `INSERT INTO orders (order_no, user_id, total_amount, discount_amount, shipping_fee, pay_amount,
    address_data, remark, user_coupon_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (order_no) DO NOTHING
RETURNING ` + orderColumns

func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (domain.Order, error) {
	row := q.db.QueryRow(ctx, insertOrder,
		arg.OrderNo, arg.UserID, arg.Quote.TotalAmount, arg.Quote.DiscountAmount, arg.Quote.ShippingFee,
		arg.Quote.PayAmount, arg.Address, arg.Remark, arg.UserCouponID,
	)
	return scanOrder(row)
}

const insertOrderItem = `INSERT INTO order_items (order_id, product_id, sku_id, name, image, price, quantity, specs)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, product_id, sku_id, name, image, price, quantity, specs`

func scanOrderItem(row pgx.Row) (domain.OrderItem, error) {
	var it domain.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SkuID, &it.Name, &it.Image, &it.Price, &it.Quantity, &it.Specs)
	return it, err
}

func (q *Queries) InsertOrderItem(ctx context.Context, arg domain.OrderItem) (domain.OrderItem, error) {
	row := q.db.QueryRow(ctx, insertOrderItem,
		arg.OrderID, arg.ProductID, arg.SkuID, arg.Name, arg.Image, arg.Price, arg.Quantity, arg.Specs,
	)
	return scanOrderItem(row)
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrderForUser(ctx context.Context, id, userID int64) (domain.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder+` AND user_id = $2`, id, userID))
}

// LockOrder reads the order and holds its row lock until the transaction ends.
func (q *Queries) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder+` FOR UPDATE`, id))
}

const listOrderItems = `SELECT id, order_id, product_id, sku_id, name, image, price, quantity, specs
FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`

func (q *Queries) ListOrderItems(ctx context.Context, orderIDs []int64) ([]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := q.db.Query(ctx, listOrderItems, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		return scanOrderItem(row)
	})
}

func orderWhere(f OrderFilter) *where {
	w := &where{}
	if f.UserID != nil {
		w.add("user_id = $%d", *f.UserID)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.Keyword != "" {
		w.add("order_no LIKE '%%' || $%d || '%%'", f.Keyword)
	}
	return w
}

func (q *Queries) ListOrders(ctx context.Context, f OrderFilter, page domain.Page) ([]domain.Order, error) {
	w := orderWhere(f)
	sql := `SELECT ` + orderColumns + ` FROM orders` + w.String() +
		` ORDER BY created_at DESC, id DESC` + w.page(page.PageSize, page.Offset())
	rows, err := q.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(row)
	})
}

func (q *Queries) CountOrders(ctx context.Context, f OrderFilter) (int64, error) {
	w := orderWhere(f)
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM orders`+w.String(), w.args...).Scan(&n)
	return n, err
}

const updateOrderStatus = `UPDATE orders
SET status = $2, stock_released = $3, paid_at = $4, shipped_at = $5, completed_at = $6, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg domain.Order) (domain.Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.StockReleased, arg.PaidAt, arg.ShippedAt, arg.CompletedAt)
	return scanOrder(row)
}
