package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/metrics"
	"github.com/azizikri/storefront/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const maxRemarkLength = 200

var tracer = otel.Tracer("github.com/azizikri/storefront/internal/usecase")

type OrderConfig struct {
	Shipping domain.ShippingPolicy
	// OrderNoAttempts bounds how many fresh order numbers are tried when
	// the generated one is already taken.
	OrderNoAttempts int
}

type OrderService struct {
	store   repository.Store
	events  OrderEvents
	cache   Cache
	cfg     OrderConfig
	now     func() time.Time
	orderNo func(time.Time) string
}

func NewOrderService(store repository.Store, events OrderEvents, cache Cache, cfg OrderConfig) *OrderService {
	if cfg.OrderNoAttempts < 1 {
		cfg.OrderNoAttempts = 1
	}
	return &OrderService{
		store:   store,
		events:  events,
		cache:   cache,
		cfg:     cfg,
		now:     time.Now,
		orderNo: newOrderNo,
	}
}

// newOrderNo is the calendar date followed by six random digits.
func newOrderNo(now time.Time) string {
	return fmt.Sprintf("%s%06d", now.Format("20060102"), rand.IntN(1_000_000))
}

type OrderLine struct {
	ProductID int64
	SkuID     *int64
	Quantity  int
}

type CreateOrderInput struct {
	UserID       int64
	Items        []OrderLine
	AddressID    int64
	UserCouponID *int64
	Remark       *string
}

func (in CreateOrderInput) validate() error {
	if len(in.Items) == 0 {
		return domain.Errorf(domain.ErrInvalidInput, "order must contain at least one item")
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return domain.Errorf(domain.ErrInvalidInput, "quantity must be at least 1")
		}
	}
	if in.Remark != nil && utf8.RuneCountInString(*in.Remark) > maxRemarkLength {
		return domain.Errorf(domain.ErrInvalidInput, "remark must be at most %d characters", maxRemarkLength)
	}
	return nil
}

// CreateOrder prices the cart and persists the order, its items, the stock
// reservation and the coupon redemption in a single transaction. Any failure
// leaves stock and coupons untouched.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.Int64("user.id", in.UserID),
		attribute.Int("order.lines", len(in.Items)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := in.validate(); err != nil {
		metrics.RecordOrderCreated(outcome(err), 0)
		return nil, err
	}

	now := s.now()
	var created domain.Order
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		address, err := q.GetAddress(ctx, in.AddressID, in.UserID)
		if err != nil {
			return notFound(err, "address")
		}

		items, total, err := s.priceLines(ctx, q, in.Items)
		if err != nil {
			return err
		}

		discount := decimal.Zero
		if in.UserCouponID != nil {
			uc, err := q.GetUserCoupon(ctx, *in.UserCouponID, in.UserID)
			if err != nil {
				return notFound(err, "coupon")
			}
			if uc.Status != domain.UserCouponAvailable {
				return domain.Errorf(domain.ErrNotFound, "coupon not found or already used")
			}
			if discount, err = uc.Coupon.Discount(total, now); err != nil {
				return err
			}
		}
		quote := domain.NewQuote(total, discount, s.cfg.Shipping)

		created, err = s.insertOrder(ctx, q, repository.InsertOrderParams{
			UserID:       in.UserID,
			Quote:        quote,
			Address:      address.Snapshot(),
			Remark:       in.Remark,
			UserCouponID: in.UserCouponID,
		}, now)
		if err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = created.ID
			saved, err := q.InsertOrderItem(ctx, items[i])
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			saved.Product = items[i].Product
			items[i] = saved

			if err := reserveStock(ctx, q, saved); err != nil {
				return err
			}
		}
		created.Items = items

		if in.UserCouponID != nil {
			return redeemCoupon(ctx, q, in.UserID, *in.UserCouponID, created.ID, now)
		}
		return nil
	})
	metrics.RecordOrderCreated(outcome(err), created.PayAmount.InexactFloat64())
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.no", created.OrderNo))
	zerolog.Ctx(ctx).Info().
		Int64("order_id", created.ID).
		Str("order_no", created.OrderNo).
		Str("pay_amount", created.PayAmount.StringFixed(2)).
		Msg("order created")

	s.afterCommit(ctx, &created, "", productIDs(created.Items))
	return &created, nil
}

// priceLines resolves every cart line to a priced snapshot. The stock check
// here is advisory; the conditional decrement later is what enforces it.
func (s *OrderService) priceLines(ctx context.Context, q repository.Querier, lines []OrderLine) ([]domain.OrderItem, decimal.Decimal, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		product, err := q.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, total, notFound(err, "product")
		}
		if product.Status != domain.ProductActive {
			return nil, total, domain.Errorf(domain.ErrInvalidState, "product %s is not on sale", product.Name)
		}

		item := domain.OrderItem{
			Product:   &domain.ProductSummary{ID: product.ID, Name: product.Name, Images: product.Images},
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.FirstImage(),
			Price:     product.Price,
			Quantity:  line.Quantity,
		}
		stock := product.Stock

		if line.SkuID != nil {
			if product.Skus, err = q.ListSkusByProduct(ctx, product.ID); err != nil {
				return nil, total, fmt.Errorf("list skus: %w", err)
			}
			sku, ok := product.FindSku(*line.SkuID)
			if !ok {
				return nil, total, domain.Errorf(domain.ErrNotFound, "sku not found")
			}
			item.SkuID = &sku.ID
			item.Price = sku.Price
			item.Specs = sku.Specs
			stock = sku.Stock
		}

		if stock < line.Quantity {
			return nil, total, domain.Errorf(domain.ErrInsufficientStock, "%s is out of stock", product.Name)
		}

		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, item)
	}
	return items, total, nil
}

func (s *OrderService) insertOrder(ctx context.Context, q repository.Querier, arg repository.InsertOrderParams, now time.Time) (domain.Order, error) {
	for attempt := 0; attempt < s.cfg.OrderNoAttempts; attempt++ {
		arg.OrderNo = s.orderNo(now)
		order, err := q.InsertOrder(ctx, arg)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("insert order: %w", err)
		}
		zerolog.Ctx(ctx).Debug().Str("order_no", arg.OrderNo).Msg("order number taken, regenerating")
	}
	return domain.Order{}, fmt.Errorf("no free order number after %d attempts", s.cfg.OrderNoAttempts)
}

func reserveStock(ctx context.Context, q repository.Querier, item domain.OrderItem) error {
	var (
		rows int64
		err  error
	)
	if item.SkuID != nil {
		rows, err = q.DecrementSkuStock(ctx, *item.SkuID, item.Quantity)
	} else {
		rows, err = q.DecrementProductStock(ctx, item.ProductID, item.Quantity)
	}
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrInsufficientStock, "%s is out of stock", item.Name)
	}
	return nil
}

func releaseStock(ctx context.Context, q repository.Querier, items []domain.OrderItem) error {
	for _, item := range items {
		var err error
		if item.SkuID != nil {
			err = q.RestoreSkuStock(ctx, *item.SkuID, item.Quantity)
		} else {
			err = q.RestoreProductStock(ctx, item.ProductID, item.Quantity)
		}
		if err != nil {
			return fmt.Errorf("release stock: %w", err)
		}
	}
	return nil
}

func redeemCoupon(ctx context.Context, q repository.Querier, userID, userCouponID, orderID int64, now time.Time) error {
	uc, err := q.GetUserCoupon(ctx, userCouponID, userID)
	if err != nil {
		return notFound(err, "coupon")
	}
	rows, err := q.RedeemUserCoupon(ctx, repository.RedeemUserCouponParams{
		ID:      userCouponID,
		UserID:  userID,
		OrderID: orderID,
		UsedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrInvalidState, "coupon has already been used")
	}
	if rows, err = q.IncrementRedeemed(ctx, uc.CouponID); err != nil {
		return fmt.Errorf("increment redeemed: %w", err)
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrInvalidState, "coupon %s cannot be redeemed", uc.Coupon.Name)
	}
	return nil
}

func productIDs(items []domain.OrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

// afterCommit runs the side effects that must not fail a committed change.
// An empty from means the order was just created.
func (s *OrderService) afterCommit(ctx context.Context, order *domain.Order, from domain.OrderStatus, touched []int64) {
	logger := zerolog.Ctx(ctx)

	if len(touched) > 0 {
		if err := s.cache.InvalidateProducts(ctx, touched...); err != nil {
			logger.Warn().Err(err).Ints64("product_ids", touched).Msg("product cache invalidation failed")
		}
	}

	var err error
	if from == "" {
		err = s.events.OrderCreated(ctx, order)
	} else {
		metrics.RecordOrderTransition(string(order.Status))
		err = s.events.OrderStatusChanged(ctx, order, from)
	}
	if err != nil {
		logger.Warn().Err(err).Int64("order_id", order.ID).Msg("order event publish failed")
	}
}

func (s *OrderService) GetOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	order, err := s.store.GetOrderForUser(ctx, id, userID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if order.Items, err = s.store.ListOrderItems(ctx, []int64{order.ID}); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID int64, status string, page domain.Page) (domain.PageResult[domain.Order], error) {
	return s.listOrders(ctx, repository.OrderFilter{UserID: &userID, Status: status}, page)
}

// AdminListOrders lists every user's orders; keyword matches the order number.
func (s *OrderService) AdminListOrders(ctx context.Context, status, keyword string, page domain.Page) (domain.PageResult[domain.Order], error) {
	return s.listOrders(ctx, repository.OrderFilter{Status: status, Keyword: keyword}, page)
}

func (s *OrderService) listOrders(ctx context.Context, f repository.OrderFilter, page domain.Page) (domain.PageResult[domain.Order], error) {
	var res domain.PageResult[domain.Order]
	if f.Status != "" {
		if _, err := domain.ParseOrderStatus(f.Status); err != nil {
			return res, err
		}
	}
	page = page.Normalize(10)

	var (
		orders []domain.Order
		total  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = s.store.ListOrders(gctx, f, page)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.store.CountOrders(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	if err := s.attachItems(ctx, orders); err != nil {
		return res, err
	}
	return domain.PageResult[domain.Order]{Items: orders, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

func (s *OrderService) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]*domain.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		orders[i].Items = []domain.OrderItem{}
		byID[orders[i].ID] = &orders[i]
	}

	items, err := s.store.ListOrderItems(ctx, ids)
	if err != nil {
		return err
	}
	for _, it := range items {
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return nil
}

func (s *OrderService) CancelOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	return s.transition(ctx, "CancelOrder", id, &userID, func(o *domain.Order, _ time.Time) error {
		return o.Cancel()
	})
}

func (s *OrderService) ConfirmOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	return s.transition(ctx, "ConfirmOrder", id, &userID, func(o *domain.Order, now time.Time) error {
		return o.ConfirmReceipt(now)
	})
}

func (s *OrderService) RefundOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	return s.transition(ctx, "RefundOrder", id, &userID, func(o *domain.Order, _ time.Time) error {
		return o.RequestRefund()
	})
}

// SetOrderStatus is the administrative override. Coupons are not given back.
// Moving a cancelled or refunded order back to a live status takes its units
// out of stock again and fails when they are no longer there.
func (s *OrderService) SetOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	to, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, "SetOrderStatus", id, nil, func(o *domain.Order, now time.Time) error {
		o.ForceStatus(to, now)
		return nil
	})
}

type transitionFunc func(o *domain.Order, now time.Time) error

// transition locks the order row, applies fn, settles stock and persists the
// result. When owner is set, orders belonging to someone else look like
// missing ones.
func (s *OrderService) transition(ctx context.Context, name string, id int64, owner *int64, fn transitionFunc) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService."+name, trace.WithAttributes(attribute.Int64("order.id", id)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var (
		updated domain.Order
		from    domain.OrderStatus
		move    domain.StockMove
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		current, err := q.LockOrder(ctx, id)
		if err != nil {
			return notFound(err, "order")
		}
		if owner != nil && current.UserID != *owner {
			return domain.Errorf(domain.ErrNotFound, "order not found")
		}

		from = current.Status
		if err := fn(&current, s.now()); err != nil {
			return err
		}
		move = current.SettleStock()

		if updated, err = q.UpdateOrderStatus(ctx, current); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if updated.Items, err = q.ListOrderItems(ctx, []int64{id}); err != nil {
			return err
		}
		switch move {
		case domain.StockRelease:
			return releaseStock(ctx, q, updated.Items)
		case domain.StockReserve:
			for _, item := range updated.Items {
				if err := reserveStock(ctx, q, item); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("order_id", updated.ID).
		Str("from", string(from)).
		Str("to", string(updated.Status)).
		Stringer("stock", move).
		Msg("order status changed")

	var touched []int64
	if move != domain.StockKept {
		touched = productIDs(updated.Items)
	}
	s.afterCommit(ctx, &updated, from, touched)
	return &updated, nil
}
