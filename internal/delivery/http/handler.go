package http

import (
	"context"
	"net/http"

	"github.com/azizikri/storefront/internal/auth"
	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/metrics"
	"github.com/azizikri/storefront/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type AuthUsecase interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.Session, error)
	Login(ctx context.Context, account, password string) (*usecase.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*usecase.Session, error)
	Me(ctx context.Context, userID int64) (*domain.User, error)
}

type CatalogUsecase interface {
	ListProducts(ctx context.Context, in usecase.ProductQuery) (domain.PageResult[domain.Product], error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch usecase.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type OrderUsecase interface {
	CreateOrder(ctx context.Context, in usecase.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id, userID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64, status string, page domain.Page) (domain.PageResult[domain.Order], error)
	AdminListOrders(ctx context.Context, status, keyword string, page domain.Page) (domain.PageResult[domain.Order], error)
	CancelOrder(ctx context.Context, id, userID int64) (*domain.Order, error)
	ConfirmOrder(ctx context.Context, id, userID int64) (*domain.Order, error)
	RefundOrder(ctx context.Context, id, userID int64) (*domain.Order, error)
	SetOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error)
}

type AddressUsecase interface {
	ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error)
	GetAddress(ctx context.Context, id, userID int64) (*domain.Address, error)
	CreateAddress(ctx context.Context, a domain.Address) (*domain.Address, error)
	UpdateAddress(ctx context.Context, a domain.Address) (*domain.Address, error)
	DeleteAddress(ctx context.Context, id, userID int64) error
}

type CouponUsecase interface {
	ListUserCoupons(ctx context.Context, userID int64, status string) ([]domain.UserCoupon, error)
	ListAvailableCoupons(ctx context.Context) ([]domain.Coupon, error)
	ListCoupons(ctx context.Context, status string, page domain.Page) (domain.PageResult[domain.Coupon], error)
	CreateCoupon(ctx context.Context, c domain.Coupon) (*domain.Coupon, error)
	UpdateCoupon(ctx context.Context, id int64, patch usecase.CouponPatch) (*domain.Coupon, error)
	DeleteCoupon(ctx context.Context, id int64) error
}

type Services struct {
	Auth      AuthUsecase
	Catalog   CatalogUsecase
	Orders    OrderUsecase
	Addresses AddressUsecase
	Coupons   CouponUsecase
	// Claims is either the direct service or the Kafka request/reply gateway.
	Claims usecase.CouponGateway
}

type Handler struct {
	svc      Services
	issuer   *auth.Issuer
	validate *validator.Validate
	// exposeErrors puts internal error text in 500 responses.
	exposeErrors bool
}

func NewHandler(svc Services, issuer *auth.Issuer, exposeErrors bool) *Handler {
	return &Handler{
		svc:          svc,
		issuer:       issuer,
		validate:     newValidator(),
		exposeErrors: exposeErrors,
	}
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return auth.Authenticate(h.issuer, h.writeError)(next)
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return auth.RequireRole(domain.RoleAdmin, h.writeError)(next)
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.With(h.authenticate).Get("/me", h.Me)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/categories/all", h.ListCategories)
			r.Get("/{id}", h.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate, h.requireAdmin)
				r.Post("/", h.CreateProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
				r.Post("/categories", h.CreateCategory)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}/cancel", h.CancelOrder)
			r.Put("/{id}/confirm", h.ConfirmOrder)
			r.Put("/{id}/refund", h.RefundOrder)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/admin/all", h.AdminListOrders)
				r.Put("/admin/{id}/status", h.SetOrderStatus)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/coupons/available", h.ListAvailableCoupons)

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Get("/addresses", h.ListAddresses)
				r.Post("/addresses", h.CreateAddress)
				r.Get("/addresses/{id}", h.GetAddress)
				r.Put("/addresses/{id}", h.UpdateAddress)
				r.Delete("/addresses/{id}", h.DeleteAddress)

				r.Post("/coupons/claim", h.ClaimCoupon)
				r.Get("/coupons", h.ListUserCoupons)
			})
		})

		r.Route("/admin/coupons", func(r chi.Router) {
			r.Use(h.authenticate, h.requireAdmin)
			r.Get("/", h.AdminListCoupons)
			r.Post("/", h.AdminCreateCoupon)
			r.Put("/{id}", h.AdminUpdateCoupon)
			r.Delete("/{id}", h.AdminDeleteCoupon)
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]string{"status": "ok"}, "healthy")
}
