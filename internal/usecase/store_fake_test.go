package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore keeps everything in memory. ExecTx holds a lock for the whole
// transaction and restores a snapshot when fn fails, which is enough to
// check all-or-nothing behaviour and serialised conflicts.
type fakeStore struct {
	mu sync.Mutex
	*memData
}

func newFakeStore() *fakeStore {
	return &fakeStore{memData: &memData{
		users:       map[int64]domain.User{},
		products:    map[int64]domain.Product{},
		skus:        map[int64]domain.ProductSku{},
		coupons:     map[int64]domain.Coupon{},
		userCoupons: map[int64]domain.UserCoupon{},
		addresses:   map[int64]domain.Address{},
		orders:      map[int64]domain.Order{},
	}}
}

func (f *fakeStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := f.memData.clone()
	if err := fn(f.memData); err != nil {
		*f.memData = *snapshot
		return err
	}
	return nil
}

type memData struct {
	nextID      int64
	users       map[int64]domain.User
	categories  []domain.Category
	products    map[int64]domain.Product
	skus        map[int64]domain.ProductSku
	coupons     map[int64]domain.Coupon
	userCoupons map[int64]domain.UserCoupon
	addresses   map[int64]domain.Address
	orders      map[int64]domain.Order
	items       []domain.OrderItem

	// failItemInsert makes InsertOrderItem fail, to exercise rollback.
	failItemInsert error
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *memData) clone() *memData {
	c := *m
	c.users = cloneMap(m.users)
	c.categories = append([]domain.Category(nil), m.categories...)
	c.products = cloneMap(m.products)
	c.skus = cloneMap(m.skus)
	c.coupons = cloneMap(m.coupons)
	c.userCoupons = cloneMap(m.userCoupons)
	c.addresses = cloneMap(m.addresses)
	c.orders = cloneMap(m.orders)
	c.items = append([]domain.OrderItem(nil), m.items...)
	return &c
}

func (m *memData) id() int64 {
	m.nextID++
	return m.nextID
}

var errUnique = &pgconn.PgError{Code: uniqueViolation}

func paginate[T any](all []T, page domain.Page) []T {
	start := page.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := start + page.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// sortedDesc returns the map values ordered newest (highest id) first.
func sortedDesc[T any](m map[int64]T, keep func(T) bool) []T {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (m *memData) CreateUser(ctx context.Context, arg repository.CreateUserParams) (domain.User, error) {
	for _, u := range m.users {
		if u.Phone == arg.Phone {
			return domain.User{}, errUnique
		}
	}
	now := time.Now()
	u := domain.User{
		ID:           m.id(),
		Username:     arg.Username,
		Phone:        arg.Phone,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Nickname:     arg.Nickname,
		Role:         arg.Role,
		Status:       domain.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memData) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memData) GetUserByAccount(ctx context.Context, account string) (domain.User, error) {
	for _, u := range m.users {
		if u.Phone == account || (u.Username != nil && *u.Username == account) || (u.Email != nil && *u.Email == account) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memData) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return append([]domain.Category(nil), m.categories...), nil
}

func (m *memData) CreateCategory(ctx context.Context, arg domain.Category) (domain.Category, error) {
	arg.ID = m.id()
	m.categories = append(m.categories, arg)
	return arg, nil
}

func productMatches(p domain.Product, f repository.ProductFilter) bool {
	if f.ActiveOnly && p.Status != domain.ProductActive {
		return false
	}
	if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
		return false
	}
	if f.Keyword != "" && !strings.Contains(strings.ToLower(p.Name+p.SubTitle), strings.ToLower(f.Keyword)) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

func (m *memData) ListProducts(ctx context.Context, f repository.ProductFilter, page domain.Page) ([]domain.Product, error) {
	all := sortedDesc(m.products, func(p domain.Product) bool { return productMatches(p, f) })
	return paginate(all, page), nil
}

func (m *memData) CountProducts(ctx context.Context, f repository.ProductFilter) (int64, error) {
	return int64(len(sortedDesc(m.products, func(p domain.Product) bool { return productMatches(p, f) }))), nil
}

func (m *memData) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memData) ListSkusByProduct(ctx context.Context, productID int64) ([]domain.ProductSku, error) {
	out := []domain.ProductSku{}
	for _, s := range m.skus {
		if s.ProductID == productID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memData) CreateProduct(ctx context.Context, arg domain.Product) (domain.Product, error) {
	arg.ID = m.id()
	arg.Skus = nil
	arg.CreatedAt = time.Now()
	arg.UpdatedAt = arg.CreatedAt
	m.products[arg.ID] = arg
	return arg, nil
}

func (m *memData) CreateSku(ctx context.Context, arg domain.ProductSku) (domain.ProductSku, error) {
	if arg.Specs == nil {
		arg.Specs = map[string]string{}
	}
	arg.ID = m.id()
	m.skus[arg.ID] = arg
	return arg, nil
}

func (m *memData) UpdateProduct(ctx context.Context, arg domain.Product) (domain.Product, error) {
	p, ok := m.products[arg.ID]
	if !ok {
		return domain.Product{}, pgx.ErrNoRows
	}
	arg.Sales, arg.Views, arg.CreatedAt = p.Sales, p.Views, p.CreatedAt
	arg.UpdatedAt = time.Now()
	arg.Skus = nil
	m.products[arg.ID] = arg
	return arg, nil
}

func (m *memData) IncrementProductViews(ctx context.Context, id int64) error {
	if p, ok := m.products[id]; ok {
		p.Views++
		m.products[id] = p
	}
	return nil
}

func (m *memData) DecrementProductStock(ctx context.Context, id int64, qty int) (int64, error) {
	p, ok := m.products[id]
	if !ok || p.Stock < qty {
		return 0, nil
	}
	p.Stock -= qty
	p.Sales += qty
	m.products[id] = p
	return 1, nil
}

func (m *memData) DecrementSkuStock(ctx context.Context, id int64, qty int) (int64, error) {
	s, ok := m.skus[id]
	if !ok || s.Stock < qty {
		return 0, nil
	}
	s.Stock -= qty
	m.skus[id] = s
	return 1, nil
}

func (m *memData) RestoreProductStock(ctx context.Context, id int64, qty int) error {
	p := m.products[id]
	p.Stock += qty
	p.Sales = max(p.Sales-qty, 0)
	m.products[id] = p
	return nil
}

func (m *memData) RestoreSkuStock(ctx context.Context, id int64, qty int) error {
	s := m.skus[id]
	s.Stock += qty
	m.skus[id] = s
	return nil
}

func (m *memData) CreateCoupon(ctx context.Context, arg domain.Coupon) (domain.Coupon, error) {
	arg.ID = m.id()
	arg.CreatedAt = time.Now()
	m.coupons[arg.ID] = arg
	return arg, nil
}

func (m *memData) UpdateCoupon(ctx context.Context, arg domain.Coupon) (domain.Coupon, error) {
	c, ok := m.coupons[arg.ID]
	if !ok {
		return domain.Coupon{}, pgx.ErrNoRows
	}
	arg.Claimed, arg.Redeemed, arg.CreatedAt = c.Claimed, c.Redeemed, c.CreatedAt
	m.coupons[arg.ID] = arg
	return arg, nil
}

func (m *memData) GetCoupon(ctx context.Context, id int64) (domain.Coupon, error) {
	c, ok := m.coupons[id]
	if !ok {
		return domain.Coupon{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memData) ListCoupons(ctx context.Context, status string, page domain.Page) ([]domain.Coupon, error) {
	all := sortedDesc(m.coupons, func(c domain.Coupon) bool { return status == "" || string(c.Status) == status })
	return paginate(all, page), nil
}

func (m *memData) CountCoupons(ctx context.Context, status string) (int64, error) {
	all := sortedDesc(m.coupons, func(c domain.Coupon) bool { return status == "" || string(c.Status) == status })
	return int64(len(all)), nil
}

func (m *memData) ListAvailableCoupons(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	return sortedDesc(m.coupons, func(c domain.Coupon) bool { return c.CanClaim(now) == nil }), nil
}

func (m *memData) DeactivateCoupon(ctx context.Context, id int64) (int64, error) {
	c, ok := m.coupons[id]
	if !ok {
		return 0, nil
	}
	c.Status = domain.CouponInactive
	m.coupons[id] = c
	return 1, nil
}

func (m *memData) InsertUserCoupon(ctx context.Context, userID, couponID int64) (int64, error) {
	if _, ok := m.coupons[couponID]; !ok {
		return 0, &pgconn.PgError{Code: "23503"}
	}
	for _, uc := range m.userCoupons {
		if uc.UserID == userID && uc.CouponID == couponID {
			return 0, nil
		}
	}
	uc := domain.UserCoupon{
		ID:        m.id(),
		UserID:    userID,
		CouponID:  couponID,
		Status:    domain.UserCouponAvailable,
		CreatedAt: time.Now(),
	}
	m.userCoupons[uc.ID] = uc
	return 1, nil
}

func (m *memData) IncrementClaimed(ctx context.Context, couponID int64) (domain.Coupon, error) {
	c, ok := m.coupons[couponID]
	if !ok || c.Claimed >= c.Total {
		return domain.Coupon{}, pgx.ErrNoRows
	}
	c.Claimed++
	m.coupons[couponID] = c
	return c, nil
}

func (m *memData) IncrementRedeemed(ctx context.Context, couponID int64) (int64, error) {
	c, ok := m.coupons[couponID]
	if !ok || c.Redeemed >= c.Claimed {
		return 0, nil
	}
	c.Redeemed++
	m.coupons[couponID] = c
	return 1, nil
}

func (m *memData) withCoupon(uc domain.UserCoupon) domain.UserCoupon {
	uc.Coupon = m.coupons[uc.CouponID]
	return uc
}

func (m *memData) GetUserCoupon(ctx context.Context, id, userID int64) (domain.UserCoupon, error) {
	uc, ok := m.userCoupons[id]
	if !ok || uc.UserID != userID {
		return domain.UserCoupon{}, pgx.ErrNoRows
	}
	return m.withCoupon(uc), nil
}

func (m *memData) GetUserCouponByCoupon(ctx context.Context, userID, couponID int64) (domain.UserCoupon, error) {
	for _, uc := range m.userCoupons {
		if uc.UserID == userID && uc.CouponID == couponID {
			return m.withCoupon(uc), nil
		}
	}
	return domain.UserCoupon{}, pgx.ErrNoRows
}

func (m *memData) ListUserCoupons(ctx context.Context, userID int64, status string) ([]domain.UserCoupon, error) {
	all := sortedDesc(m.userCoupons, func(uc domain.UserCoupon) bool {
		return uc.UserID == userID && (status == "" || string(uc.Status) == status)
	})
	for i := range all {
		all[i] = m.withCoupon(all[i])
	}
	return all, nil
}

func (m *memData) RedeemUserCoupon(ctx context.Context, arg repository.RedeemUserCouponParams) (int64, error) {
	uc, ok := m.userCoupons[arg.ID]
	if !ok || uc.UserID != arg.UserID || uc.Status != domain.UserCouponAvailable {
		return 0, nil
	}
	usedAt, orderID := arg.UsedAt, arg.OrderID
	uc.Status = domain.UserCouponUsed
	uc.UsedAt = &usedAt
	uc.OrderID = &orderID
	m.userCoupons[arg.ID] = uc
	return 1, nil
}

func (m *memData) ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error) {
	all := sortedDesc(m.addresses, func(a domain.Address) bool { return a.UserID == userID })
	sort.SliceStable(all, func(i, j int) bool { return all[i].IsDefault && !all[j].IsDefault })
	return all, nil
}

func (m *memData) GetAddress(ctx context.Context, id, userID int64) (domain.Address, error) {
	a, ok := m.addresses[id]
	if !ok || a.UserID != userID {
		return domain.Address{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *memData) defaultTaken(userID, exceptID int64) bool {
	for _, a := range m.addresses {
		if a.UserID == userID && a.IsDefault && a.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *memData) CreateAddress(ctx context.Context, arg domain.Address) (domain.Address, error) {
	if arg.IsDefault && m.defaultTaken(arg.UserID, 0) {
		return domain.Address{}, errUnique
	}
	arg.ID = m.id()
	arg.CreatedAt = time.Now()
	m.addresses[arg.ID] = arg
	return arg, nil
}

func (m *memData) UpdateAddress(ctx context.Context, arg domain.Address) (domain.Address, error) {
	a, ok := m.addresses[arg.ID]
	if !ok || a.UserID != arg.UserID {
		return domain.Address{}, pgx.ErrNoRows
	}
	if arg.IsDefault && m.defaultTaken(arg.UserID, arg.ID) {
		return domain.Address{}, errUnique
	}
	arg.CreatedAt = a.CreatedAt
	m.addresses[arg.ID] = arg
	return arg, nil
}

func (m *memData) DeleteAddress(ctx context.Context, id, userID int64) (int64, error) {
	a, ok := m.addresses[id]
	if !ok || a.UserID != userID {
		return 0, nil
	}
	delete(m.addresses, id)
	return 1, nil
}

func (m *memData) ClearDefaultAddress(ctx context.Context, userID, keepID int64) error {
	for id, a := range m.addresses {
		if a.UserID == userID && a.IsDefault && id != keepID {
			a.IsDefault = false
			m.addresses[id] = a
		}
	}
	return nil
}

func (m *memData) InsertOrder(ctx context.Context, arg repository.InsertOrderParams) (domain.Order, error) {
	for _, o := range m.orders {
		if o.OrderNo == arg.OrderNo {
			return domain.Order{}, pgx.ErrNoRows
		}
	}
	now := time.Now()
	o := domain.Order{
		ID:             m.id(),
		OrderNo:        arg.OrderNo,
		UserID:         arg.UserID,
		Status:         domain.OrderPending,
		TotalAmount:    arg.Quote.TotalAmount,
		DiscountAmount: arg.Quote.DiscountAmount,
		ShippingFee:    arg.Quote.ShippingFee,
		PayAmount:      arg.Quote.PayAmount,
		Address:        arg.Address,
		Remark:         arg.Remark,
		UserCouponID:   arg.UserCouponID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memData) InsertOrderItem(ctx context.Context, arg domain.OrderItem) (domain.OrderItem, error) {
	if m.failItemInsert != nil {
		return domain.OrderItem{}, m.failItemInsert
	}
	arg.ID = m.id()
	m.items = append(m.items, arg)
	return arg, nil
}


func (m *memData) GetOrderForUser(ctx context.Context, id, userID int64) (domain.Order, error) {
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return domain.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memData) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memData) ListOrderItems(ctx context.Context, orderIDs []int64) ([]domain.OrderItem, error) {
	want := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []domain.OrderItem
	for _, it := range m.items {
		if want[it.OrderID] {
			out = append(out, it)
		}
	}
	return out, nil
}

func orderMatches(o domain.Order, f repository.OrderFilter) bool {
	if f.UserID != nil && o.UserID != *f.UserID {
		return false
	}
	if f.Status != "" && string(o.Status) != f.Status {
		return false
	}
	return f.Keyword == "" || strings.Contains(o.OrderNo, f.Keyword)
}

func (m *memData) ListOrders(ctx context.Context, f repository.OrderFilter, page domain.Page) ([]domain.Order, error) {
	return paginate(sortedDesc(m.orders, func(o domain.Order) bool { return orderMatches(o, f) }), page), nil
}

func (m *memData) CountOrders(ctx context.Context, f repository.OrderFilter) (int64, error) {
	return int64(len(sortedDesc(m.orders, func(o domain.Order) bool { return orderMatches(o, f) }))), nil
}

func (m *memData) UpdateOrderStatus(ctx context.Context, arg domain.Order) (domain.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok {
		return domain.Order{}, pgx.ErrNoRows
	}
	o.Status, o.StockReleased = arg.Status, arg.StockReleased
	o.PaidAt, o.ShippedAt, o.CompletedAt = arg.PaidAt, arg.ShippedAt, arg.CompletedAt
	o.UpdatedAt = time.Now()
	m.orders[o.ID] = o
	return o, nil
}

// stubCache records invalidations and serves whatever was last stored.
type stubCache struct {
	mu                   sync.Mutex
	products             map[int64]*domain.Product
	available            []domain.Coupon
	availableSet         bool
	invalidatedProducts  []int64
	availableInvalidated int
}

func newStubCache() *stubCache {
	return &stubCache{products: map[int64]*domain.Product{}}
}

func (c *stubCache) GetProduct(ctx context.Context, id int64) (*domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	return p, ok, nil
}

func (c *stubCache) SetProduct(ctx context.Context, product *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
	return nil
}

func (c *stubCache) InvalidateProducts(ctx context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
	}
	c.invalidatedProducts = append(c.invalidatedProducts, ids...)
	return nil
}

func (c *stubCache) GetAvailableCoupons(ctx context.Context) ([]domain.Coupon, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available, c.availableSet, nil
}

func (c *stubCache) SetAvailableCoupons(ctx context.Context, coupons []domain.Coupon) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available, c.availableSet = coupons, true
	return nil
}

func (c *stubCache) InvalidateAvailableCoupons(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available, c.availableSet = nil, false
	c.availableInvalidated++
	return nil
}

type recordedEvent struct {
	orderID int64
	from    domain.OrderStatus
	to      domain.OrderStatus
}

type stubEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *stubEvents) OrderCreated(ctx context.Context, order *domain.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{orderID: order.ID, to: order.Status})
	return nil
}

func (e *stubEvents) OrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{orderID: order.ID, from: from, to: order.Status})
	return nil
}
