package usecase

import (
	"context"

	"github.com/azizikri/storefront/internal/domain"
)

// CouponGateway routes claims either straight to CouponService or through
// the Kafka request/reply path.
type CouponGateway interface {
	ClaimCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error)
}

// OrderEvents is notified after an order change has committed. Delivery is
// best effort.
type OrderEvents interface {
	OrderCreated(ctx context.Context, order *domain.Order) error
	OrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error
}

// Cache is a read-through cache. Get methods report found=false on a miss.
type Cache interface {
	GetProduct(ctx context.Context, id int64) (product *domain.Product, found bool, err error)
	SetProduct(ctx context.Context, product *domain.Product) error
	InvalidateProducts(ctx context.Context, ids ...int64) error
	GetAvailableCoupons(ctx context.Context) (coupons []domain.Coupon, found bool, err error)
	SetAvailableCoupons(ctx context.Context, coupons []domain.Coupon) error
	InvalidateAvailableCoupons(ctx context.Context) error
}
