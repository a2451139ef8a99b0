package repository

import (
	"context"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
)

const couponColumns = `id, name, kind, value, min_amount, max_amount, total, claimed, redeemed, status, start_time, end_time, description, created_at`

func scanCoupon(row pgx.Row) (domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(
		&c.ID, &c.Name, &c.Kind, &c.Value, &c.MinAmount, &c.MaxAmount, &c.Total, &c.Claimed,
		&c.Redeemed, &c.Status, &c.StartTime, &c.EndTime, &c.Description, &c.CreatedAt,
	)
	return c, err
}

func collectCoupons(rows pgx.Rows) ([]domain.Coupon, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Coupon, error) {
		return scanCoupon(row)
	})
}

const createCoupon = `INSERT INTO coupons (name, kind, value, min_amount, max_amount, total, status, start_time, end_time, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + couponColumns

func (q *Queries) CreateCoupon(ctx context.Context, arg domain.Coupon) (domain.Coupon, error) {
	row := q.db.QueryRow(ctx, createCoupon,
		arg.Name, arg.Kind, arg.Value, arg.MinAmount, arg.MaxAmount, arg.Total,
		arg.Status, arg.StartTime, arg.EndTime, arg.Description,
	)
	return scanCoupon(row)
}

const updateCoupon = `UPDATE coupons
SET name = $2, kind = $3, value = $4, min_amount = $5, max_amount = $6, total = $7,
    status = $8, start_time = $9, end_time = $10, description = $11
WHERE id = $1
RETURNING ` + couponColumns

func (q *Queries) UpdateCoupon(ctx context.Context, arg domain.Coupon) (domain.Coupon, error) {
	row := q.db.QueryRow(ctx, updateCoupon,
		arg.ID, arg.Name, arg.Kind, arg.Value, arg.MinAmount, arg.MaxAmount, arg.Total,
		arg.Status, arg.StartTime, arg.EndTime, arg.Description,
	)
	return scanCoupon(row)
}

const getCoupon = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

func (q *Queries) GetCoupon(ctx context.Context, id int64) (domain.Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, getCoupon, id))
}

func couponWhere(status string) *where {
	w := &where{}
	if status != "" {
		w.add("status = $%d", status)
	}
	return w
}

func (q *Queries) ListCoupons(ctx context.Context, status string, page domain.Page) ([]domain.Coupon, error) {
	w := couponWhere(status)
	sql := `SELECT ` + couponColumns + ` FROM coupons` + w.String() +
		` ORDER BY created_at DESC, id DESC` + w.page(page.PageSize, page.Offset())
	rows, err := q.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, err
	}
	return collectCoupons(rows)
}

func (q *Queries) CountCoupons(ctx context.Context, status string) (int64, error) {
	w := couponWhere(status)
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM coupons`+w.String(), w.args...).Scan(&n)
	return n, err
}

const listAvailableCoupons = `SELECT ` + couponColumns + ` FROM coupons
WHERE status = 'active' AND start_time <= $1 AND end_time >= $1 AND claimed < total
ORDER BY created_at DESC, id DESC`

func (q *Queries) ListAvailableCoupons(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	rows, err := q.db.Query(ctx, listAvailableCoupons, now)
	if err != nil {
		return nil, err
	}
	return collectCoupons(rows)
}

func (q *Queries) DeactivateCoupon(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE coupons SET status = 'inactive' WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertUserCoupon = `INSERT INTO user_coupons (user_id, coupon_id) VALUES ($1, $2)
ON CONFLICT (user_id, coupon_id) DO NOTHING`

func (q *Queries) InsertUserCoupon(ctx context.Context, userID, couponID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, insertUserCoupon, userID, couponID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IncrementClaimed returns pgx.ErrNoRows once the campaign is exhausted.
const incrementClaimed = `UPDATE coupons SET claimed = claimed + 1
WHERE id = $1 AND claimed < total
RETURNING ` + couponColumns

func (q *Queries) IncrementClaimed(ctx context.Context, couponID int64) (domain.Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, incrementClaimed, couponID))
}

const incrementRedeemed = `UPDATE coupons SET redeemed = redeemed + 1 WHERE id = $1 AND redeemed < claimed`

func (q *Queries) IncrementRedeemed(ctx context.Context, couponID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, incrementRedeemed, couponID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const userCouponSelect = `SELECT uc.id, uc.user_id, uc.coupon_id, uc.status, uc.used_at, uc.order_id, uc.created_at,
    c.id, c.name, c.kind, c.value, c.min_amount, c.max_amount, c.total, c.claimed, c.redeemed,
    c.status, c.start_time, c.end_time, c.description, c.created_at
FROM user_coupons uc
JOIN coupons c ON c.id = uc.coupon_id`

func scanUserCoupon(row pgx.Row) (domain.UserCoupon, error) {
	var uc domain.UserCoupon
	c := &uc.Coupon
	err := row.Scan(
		&uc.ID, &uc.UserID, &uc.CouponID, &uc.Status, &uc.UsedAt, &uc.OrderID, &uc.CreatedAt,
		&c.ID, &c.Name, &c.Kind, &c.Value, &c.MinAmount, &c.MaxAmount, &c.Total, &c.Claimed, &c.Redeemed,
		&c.Status, &c.StartTime, &c.EndTime, &c.Description, &c.CreatedAt,
	)
	return uc, err
}

func (q *Queries) GetUserCoupon(ctx context.Context, id, userID int64) (domain.UserCoupon, error) {
	return scanUserCoupon(q.db.QueryRow(ctx, userCouponSelect+` WHERE uc.id = $1 AND uc.user_id = $2`, id, userID))
}

func (q *Queries) GetUserCouponByCoupon(ctx context.Context, userID, couponID int64) (domain.UserCoupon, error) {
	return scanUserCoupon(q.db.QueryRow(ctx, userCouponSelect+` WHERE uc.user_id = $1 AND uc.coupon_id = $2`, userID, couponID))
}

func (q *Queries) ListUserCoupons(ctx context.Context, userID int64, status string) ([]domain.UserCoupon, error) {
	w := &where{}
	w.add("uc.user_id = $%d", userID)
	if status != "" {
		w.add("uc.status = $%d", status)
	}
	rows, err := q.db.Query(ctx, userCouponSelect+w.String()+` ORDER BY uc.created_at DESC, uc.id DESC`, w.args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.UserCoupon, error) {
		return scanUserCoupon(row)
	})
}

const redeemUserCoupon = `UPDATE user_coupons SET status = 'used', used_at = $3, order_id = $4
WHERE id = $1 AND user_id = $2 AND status = 'available'`

func (q *Queries) RedeemUserCoupon(ctx context.Context, arg RedeemUserCouponParams) (int64, error) {
	tag, err := q.db.Exec(ctx, redeemUserCoupon, arg.ID, arg.UserID, arg.UsedAt, arg.OrderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
