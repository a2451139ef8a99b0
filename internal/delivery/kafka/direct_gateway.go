package kafka

import (
	"context"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/usecase"
)

// DirectGateway claims in-process when the event-driven path is disabled.
type DirectGateway struct {
	service *usecase.CouponService
}

func NewDirectGateway(service *usecase.CouponService) usecase.CouponGateway {
	return &DirectGateway{service: service}
}

func (g *DirectGateway) ClaimCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	return g.service.ClaimCoupon(ctx, userID, couponID)
}
