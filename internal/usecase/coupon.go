package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/metrics"
	"github.com/azizikri/storefront/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type CouponService struct {
	store repository.Store
	cache Cache
	now   func() time.Time
}

func NewCouponService(store repository.Store, cache Cache) *CouponService {
	return &CouponService{store: store, cache: cache, now: time.Now}
}

// ClaimCoupon issues one claim of couponID to userID. The insert is
// idempotent per (user, coupon) and the counter only moves while
// claimed < total, so concurrent claims can never oversell a campaign.
func (s *CouponService) ClaimCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	var claimed domain.UserCoupon
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		coupon, err := q.GetCoupon(ctx, couponID)
		if err != nil {
			return notFound(err, "coupon")
		}
		if err := coupon.CanClaim(s.now()); err != nil {
			return err
		}

		rowsAffected, err := q.InsertUserCoupon(ctx, userID, couponID)
		if err != nil {
			return fmt.Errorf("insert user coupon: %w", err)
		}
		if rowsAffected == 0 {
			return domain.ErrAlreadyClaimed
		}

		if _, err := q.IncrementClaimed(ctx, couponID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrSoldOut
			}
			return fmt.Errorf("increment claimed: %w", err)
		}

		claimed, err = q.GetUserCouponByCoupon(ctx, userID, couponID)
		return err
	})
	metrics.RecordCouponClaim(outcome(err))
	if err != nil {
		return nil, err
	}

	s.invalidateAvailable(ctx)
	return &claimed, nil
}

func (s *CouponService) ListUserCoupons(ctx context.Context, userID int64, status string) ([]domain.UserCoupon, error) {
	if status != "" && !domain.UserCouponStatus(status).Valid() {
		return nil, domain.Errorf(domain.ErrInvalidInput, "invalid coupon status %q", status)
	}
	coupons, err := s.store.ListUserCoupons(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list user coupons: %w", err)
	}
	return coupons, nil
}

// ListAvailableCoupons returns campaigns that can be claimed right now. The
// cached list is re-filtered on read because windows close while it lives.
func (s *CouponService) ListAvailableCoupons(ctx context.Context) ([]domain.Coupon, error) {
	now := s.now()
	logger := zerolog.Ctx(ctx)

	cached, found, err := s.cache.GetAvailableCoupons(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("available coupons cache read failed")
	}
	if found {
		return filterClaimable(cached, now), nil
	}

	coupons, err := s.store.ListAvailableCoupons(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list available coupons: %w", err)
	}
	if err := s.cache.SetAvailableCoupons(ctx, coupons); err != nil {
		logger.Warn().Err(err).Msg("available coupons cache write failed")
	}
	return coupons, nil
}

func filterClaimable(coupons []domain.Coupon, now time.Time) []domain.Coupon {
	out := make([]domain.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if c.CanClaim(now) == nil {
			out = append(out, c)
		}
	}
	return out
}

func (s *CouponService) ListCoupons(ctx context.Context, status string, page domain.Page) (domain.PageResult[domain.Coupon], error) {
	page = page.Normalize(10)
	if status != "" && status != string(domain.CouponActive) && status != string(domain.CouponInactive) {
		return domain.PageResult[domain.Coupon]{}, domain.Errorf(domain.ErrInvalidInput, "invalid coupon status %q", status)
	}

	var (
		coupons []domain.Coupon
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		coupons, err = s.store.ListCoupons(gctx, status, page)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.store.CountCoupons(gctx, status)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.PageResult[domain.Coupon]{}, fmt.Errorf("list coupons: %w", err)
	}

	return domain.PageResult[domain.Coupon]{Items: coupons, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

func (s *CouponService) CreateCoupon(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
	if c.Status == "" {
		c.Status = domain.CouponActive
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	created, err := s.store.CreateCoupon(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	s.invalidateAvailable(ctx)
	return &created, nil
}

// CouponPatch holds the fields an admin update may change; nil leaves the
// stored value alone.
type CouponPatch struct {
	Name        *string
	Kind        *domain.CouponKind
	Value       *decimal.Decimal
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	Total       *int
	Status      *domain.CouponStatus
	StartTime   *time.Time
	EndTime     *time.Time
	Description *string
}

func (p CouponPatch) apply(c *domain.Coupon) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Kind != nil {
		c.Kind = *p.Kind
	}
	if p.Value != nil {
		c.Value = *p.Value
	}
	if p.MinAmount != nil {
		c.MinAmount = *p.MinAmount
	}
	if p.MaxAmount != nil {
		c.MaxAmount = p.MaxAmount
	}
	if p.Total != nil {
		c.Total = *p.Total
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.StartTime != nil {
		c.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		c.EndTime = *p.EndTime
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
}

func (s *CouponService) UpdateCoupon(ctx context.Context, id int64, patch CouponPatch) (*domain.Coupon, error) {
	var updated domain.Coupon
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		coupon, err := q.GetCoupon(ctx, id)
		if err != nil {
			return notFound(err, "coupon")
		}

		patch.apply(&coupon)
		if coupon.Status != domain.CouponActive && coupon.Status != domain.CouponInactive {
			return domain.Errorf(domain.ErrInvalidInput, "invalid coupon status %q", coupon.Status)
		}
		if err := coupon.Validate(); err != nil {
			return err
		}
		if coupon.Total < coupon.Claimed {
			return domain.Errorf(domain.ErrInvalidInput, "total cannot be lower than the %d already claimed", coupon.Claimed)
		}

		updated, err = q.UpdateCoupon(ctx, coupon)
		if err != nil {
			return fmt.Errorf("update coupon: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAvailable(ctx)
	return &updated, nil
}

// DeleteCoupon deactivates the campaign. Claims already issued keep
// pointing at it.
func (s *CouponService) DeleteCoupon(ctx context.Context, id int64) error {
	rows, err := s.store.DeactivateCoupon(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate coupon: %w", err)
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrNotFound, "coupon not found")
	}
	s.invalidateAvailable(ctx)
	return nil
}

func (s *CouponService) invalidateAvailable(ctx context.Context) {
	if err := s.cache.InvalidateAvailableCoupons(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("available coupons cache invalidation failed")
	}
}
