package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/azizikri/storefront/internal/auth"
	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stubs embed the interface so that a test only implements the calls it
// expects; anything else panics and fails the test.
type stubOrders struct {
	OrderUsecase
	create func(ctx context.Context, in usecase.CreateOrderInput) (*domain.Order, error)
	cancel func(ctx context.Context, id, userID int64) (*domain.Order, error)
}

func (s *stubOrders) CreateOrder(ctx context.Context, in usecase.CreateOrderInput) (*domain.Order, error) {
	return s.create(ctx, in)
}

func (s *stubOrders) CancelOrder(ctx context.Context, id, userID int64) (*domain.Order, error) {
	return s.cancel(ctx, id, userID)
}

type stubCatalog struct {
	CatalogUsecase
	list func(ctx context.Context, in usecase.ProductQuery) (domain.PageResult[domain.Product], error)
}

func (s *stubCatalog) ListProducts(ctx context.Context, in usecase.ProductQuery) (domain.PageResult[domain.Product], error) {
	return s.list(ctx, in)
}

type stubClaims struct {
	claim func(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error)
}

func (s *stubClaims) ClaimCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	return s.claim(ctx, userID, couponID)
}

type stubCoupons struct {
	CouponUsecase
}

type testServer struct {
	router http.Handler
	issuer *auth.Issuer
}

func newTestServer(svc Services) *testServer {
	issuer := auth.NewIssuer("test-secret", time.Hour, 24*time.Hour)
	h := NewHandler(svc, issuer, false)
	r := chi.NewRouter()
	r.Use(h.Recoverer)
	h.Routes(r)
	return &testServer{router: r, issuer: issuer}
}

func (s *testServer) token(t *testing.T, userID int64, role domain.Role) string {
	t.Helper()
	pair, err := s.issuer.Issue(auth.Identity{UserID: userID, Role: role})
	require.NoError(t, err)
	return pair.Token
}

type response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(Services{})

	code, resp := srv.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(resp.Data))
}

func TestCreateOrder(t *testing.T) {
	var got usecase.CreateOrderInput
	srv := newTestServer(Services{Orders: &stubOrders{
		create: func(_ context.Context, in usecase.CreateOrderInput) (*domain.Order, error) {
			got = in
			return &domain.Order{ID: 9, OrderNo: "20250601000001", Status: domain.OrderPending, PayAmount: decimal.NewFromInt(82)}, nil
		},
	}})

	body := `{"items":[{"productId":1,"quantity":2},{"productId":2,"skuId":5,"quantity":1}],"addressId":3,"couponId":4,"remark":"leave at door"}`
	code, resp := srv.do(t, http.MethodPost, "/api/orders", srv.token(t, 42, domain.RoleUser), body)

	require.Equal(t, http.StatusCreated, code)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, int64(3), got.AddressID)
	require.NotNil(t, got.UserCouponID)
	assert.Equal(t, int64(4), *got.UserCouponID)
	require.Len(t, got.Items, 2)
	assert.Nil(t, got.Items[0].SkuID)
	require.NotNil(t, got.Items[1].SkuID)
	assert.Equal(t, int64(5), *got.Items[1].SkuID)

	var order domain.Order
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, "20250601000001", order.OrderNo)
	assert.True(t, order.PayAmount.Equal(decimal.NewFromInt(82)))
}

func TestCreateOrder_RequiresToken(t *testing.T) {
	srv := newTestServer(Services{Orders: &stubOrders{}})

	code, resp := srv.do(t, http.MethodPost, "/api/orders", "", `{"items":[{"productId":1,"quantity":1}],"addressId":1}`)

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	srv := newTestServer(Services{Orders: &stubOrders{}})
	token := srv.token(t, 1, domain.RoleUser)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "no items", body: `{"items":[],"addressId":1}`, field: "items"},
		{name: "zero quantity", body: `{"items":[{"productId":1,"quantity":0}],"addressId":1}`, field: "items[0].quantity"},
		{name: "missing address", body: `{"items":[{"productId":1,"quantity":1}]}`, field: "addressId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := srv.do(t, http.MethodPost, "/api/orders", token, tt.body)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "validation failed", resp.Message)
			assert.Contains(t, resp.Errors, tt.field)
		})
	}
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	srv := newTestServer(Services{Orders: &stubOrders{}})

	code, resp := srv.do(t, http.MethodPost, "/api/orders", srv.token(t, 1, domain.RoleUser), `{"items":`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid request body", resp.Message)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{name: "not found", err: domain.Errorf(domain.ErrNotFound, "order not found"), code: http.StatusNotFound, message: "order not found"},
		{name: "invalid state", err: domain.ErrIllegalTransition, code: http.StatusBadRequest, message: domain.ErrIllegalTransition.Error()},
		{name: "forbidden", err: domain.ErrForbidden, code: http.StatusForbidden, message: "permission denied"},
		{name: "conflict", err: domain.ErrConflict, code: http.StatusConflict, message: "already exists"},
		{name: "internal", err: errors.New("connection reset"), code: http.StatusInternalServerError, message: "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(Services{Orders: &stubOrders{
				cancel: func(context.Context, int64, int64) (*domain.Order, error) { return nil, tt.err },
			}})

			code, resp := srv.do(t, http.MethodPut, "/api/orders/7/cancel", srv.token(t, 1, domain.RoleUser), "")

			assert.Equal(t, tt.code, code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestCancelOrder_InvalidID(t *testing.T) {
	srv := newTestServer(Services{Orders: &stubOrders{}})

	code, _ := srv.do(t, http.MethodPut, "/api/orders/abc/cancel", srv.token(t, 1, domain.RoleUser), "")

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	srv := newTestServer(Services{Coupons: &stubCoupons{}})

	code, _ := srv.do(t, http.MethodGet, "/api/admin/coupons", srv.token(t, 1, domain.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = srv.do(t, http.MethodGet, "/api/admin/coupons", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminRoutes_RejectRefreshToken(t *testing.T) {
	srv := newTestServer(Services{Coupons: &stubCoupons{}})
	pair, err := srv.issuer.Issue(auth.Identity{UserID: 1, Role: domain.RoleAdmin})
	require.NoError(t, err)

	code, _ := srv.do(t, http.MethodGet, "/api/admin/coupons", pair.RefreshToken, "")

	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestClaimCoupon(t *testing.T) {
	var gotUser, gotCoupon int64
	srv := newTestServer(Services{Claims: &stubClaims{
		claim: func(_ context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
			gotUser, gotCoupon = userID, couponID
			return &domain.UserCoupon{ID: 1, UserID: userID, CouponID: couponID, Status: domain.UserCouponAvailable}, nil
		},
	}})

	code, resp := srv.do(t, http.MethodPost, "/api/users/coupons/claim", srv.token(t, 8, domain.RoleUser), `{"couponId":3}`)

	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(8), gotUser)
	assert.Equal(t, int64(3), gotCoupon)
}

func TestClaimCoupon_AlreadyClaimed(t *testing.T) {
	srv := newTestServer(Services{Claims: &stubClaims{
		claim: func(context.Context, int64, int64) (*domain.UserCoupon, error) {
			return nil, domain.ErrAlreadyClaimed
		},
	}})

	code, resp := srv.do(t, http.MethodPost, "/api/users/coupons/claim", srv.token(t, 8, domain.RoleUser), `{"couponId":3}`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, domain.ErrAlreadyClaimed.Error(), resp.Message)
}

func TestListProducts_Pagination(t *testing.T) {
	var got usecase.ProductQuery
	srv := newTestServer(Services{Catalog: &stubCatalog{
		list: func(_ context.Context, in usecase.ProductQuery) (domain.PageResult[domain.Product], error) {
			got = in
			return domain.PageResult[domain.Product]{
				Items:    []domain.Product{{ID: 1, Name: "Mug", Price: decimal.NewFromInt(40)}},
				Total:    21,
				Page:     2,
				PageSize: 10,
			}, nil
		},
	}})

	code, resp := srv.do(t, http.MethodGet, "/api/products?page=2&pageSize=10&categoryId=4&keyword=mug&minPrice=10.5", "", "")

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, got.Page.Page)
	assert.Equal(t, 10, got.Page.PageSize)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, int64(4), *got.CategoryID)
	assert.Equal(t, "mug", got.Keyword)
	require.NotNil(t, got.MinPrice)
	assert.True(t, got.MinPrice.Equal(decimal.RequireFromString("10.5")))
	assert.Nil(t, got.MaxPrice)

	var data struct {
		Items      []domain.Product `json:"items"`
		Pagination pagination       `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Len(t, data.Items, 1)
	assert.Equal(t, pagination{Total: 21, Page: 2, PageSize: 10, TotalPages: 3}, data.Pagination)
}

func TestListProducts_BadQuery(t *testing.T) {
	srv := newTestServer(Services{Catalog: &stubCatalog{}})

	code, resp := srv.do(t, http.MethodGet, "/api/products?minPrice=cheap", "", "")

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "minPrice must be a number", resp.Message)
}

func TestRecoverer(t *testing.T) {
	// stubCoupons has no ListAvailableCoupons, so calling it panics.
	srv := newTestServer(Services{Coupons: &stubCoupons{}})

	code, resp := srv.do(t, http.MethodGet, "/api/users/coupons/available", "", "")

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", resp.Message)
}
