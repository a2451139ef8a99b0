package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type ShippingPolicy struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{
		FreeThreshold: decimal.NewFromInt(99),
		FlatFee:       decimal.NewFromInt(10),
	}
}

func (p ShippingPolicy) Fee(total decimal.Decimal) decimal.Decimal {
	if total.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FlatFee
}

// Discount returns how much the coupon takes off total, after checking the
// validity window and the minimum spend.
func (c *Coupon) Discount(total decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.InWindow(now) {
		return decimal.Zero, Errorf(ErrCouponIneligible, "coupon %s is outside its validity window", c.Name)
	}
	if total.LessThan(c.MinAmount) {
		return decimal.Zero, Errorf(ErrCouponIneligible, "order amount has not reached the coupon threshold %s", c.MinAmount.StringFixed(2))
	}

	var d decimal.Decimal
	switch c.Kind {
	case CouponPercentage:
		d = total.Mul(c.Value).Div(hundred)
	case CouponDiscount:
		d = total.Mul(decimal.NewFromInt(1).Sub(c.Value.Div(hundred)))
	case CouponFixed:
		d = c.Value
	default:
		return decimal.Zero, Errorf(ErrCouponIneligible, "coupon %s has unknown type %q", c.Name, c.Kind)
	}

	if c.MaxAmount != nil && d.GreaterThan(*c.MaxAmount) {
		d = *c.MaxAmount
	}
	if d.GreaterThan(total) {
		d = total
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d.Round(2), nil
}

type Quote struct {
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	ShippingFee    decimal.Decimal
	PayAmount      decimal.Decimal
}

func NewQuote(total, discount decimal.Decimal, policy ShippingPolicy) Quote {
	q := Quote{
		TotalAmount:    total.Round(2),
		DiscountAmount: discount.Round(2),
		ShippingFee:    policy.Fee(total),
	}
	q.PayAmount = q.TotalAmount.Sub(q.DiscountAmount).Add(q.ShippingFee)
	if q.PayAmount.IsNegative() {
		q.PayAmount = decimal.Zero
	}
	return q
}
