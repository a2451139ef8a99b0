package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CouponKind string

const (
	// CouponPercentage takes Value percent off the order total.
	CouponPercentage CouponKind = "percentage"
	// CouponDiscount charges Value percent of the order total ("90" pays 90%).
	CouponDiscount CouponKind = "discount"
	// CouponFixed takes Value off the order total.
	CouponFixed CouponKind = "fixed"
)

func (k CouponKind) Valid() bool {
	switch k {
	case CouponPercentage, CouponDiscount, CouponFixed:
		return true
	}
	return false
}

type CouponStatus string

const (
	CouponActive   CouponStatus = "active"
	CouponInactive CouponStatus = "inactive"
)

// Coupon is a campaign. Claimed counts issued UserCoupons and is capped by
// Total; Redeemed counts claims consumed by an order.
type Coupon struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Kind        CouponKind       `json:"type"`
	Value       decimal.Decimal  `json:"value"`
	MinAmount   decimal.Decimal  `json:"minAmount"`
	MaxAmount   *decimal.Decimal `json:"maxAmount"`
	Total       int              `json:"total"`
	Claimed     int              `json:"claimed"`
	Redeemed    int              `json:"redeemed"`
	Status      CouponStatus     `json:"status"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     time.Time        `json:"endTime"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func (c *Coupon) InWindow(now time.Time) bool {
	return !now.Before(c.StartTime) && !now.After(c.EndTime)
}

// CanClaim reports why a claim would be refused, or nil.
func (c *Coupon) CanClaim(now time.Time) error {
	if c.Status != CouponActive {
		return Errorf(ErrCouponIneligible, "coupon %s is no longer active", c.Name)
	}
	if !c.InWindow(now) {
		return Errorf(ErrCouponIneligible, "coupon %s is outside its validity window", c.Name)
	}
	if c.Claimed >= c.Total {
		return ErrSoldOut
	}
	return nil
}

// Validate checks the admin-supplied campaign definition.
func (c *Coupon) Validate() error {
	if c.Name == "" {
		return Errorf(ErrInvalidInput, "coupon name is required")
	}
	if !c.Kind.Valid() {
		return Errorf(ErrInvalidInput, "coupon type must be percentage, discount or fixed")
	}
	if c.Value.IsNegative() || c.MinAmount.IsNegative() {
		return Errorf(ErrInvalidInput, "coupon amounts must not be negative")
	}
	if c.Kind != CouponFixed && c.Value.GreaterThan(decimal.NewFromInt(100)) {
		return Errorf(ErrInvalidInput, "coupon rate must not exceed 100")
	}
	if c.MaxAmount != nil && c.MaxAmount.IsNegative() {
		return Errorf(ErrInvalidInput, "coupon max amount must not be negative")
	}
	if c.Total < 1 {
		return Errorf(ErrInvalidInput, "coupon total must be at least 1")
	}
	if !c.EndTime.After(c.StartTime) {
		return Errorf(ErrInvalidInput, "coupon end time must be after start time")
	}
	return nil
}

type UserCouponStatus string

const (
	UserCouponAvailable UserCouponStatus = "available"
	UserCouponUsed      UserCouponStatus = "used"
	UserCouponExpired   UserCouponStatus = "expired"
)

func (s UserCouponStatus) Valid() bool {
	switch s {
	case UserCouponAvailable, UserCouponUsed, UserCouponExpired:
		return true
	}
	return false
}

type UserCoupon struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	CouponID  int64            `json:"couponId"`
	Status    UserCouponStatus `json:"status"`
	UsedAt    *time.Time       `json:"usedAt"`
	OrderID   *int64           `json:"orderId"`
	CreatedAt time.Time        `json:"createdAt"`
	Coupon    Coupon           `json:"coupon"`
}
