package http

import (
	"net/http"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/usecase"
	"github.com/shopspring/decimal"
)

type CreateCouponRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Kind        string           `json:"type" validate:"required,oneof=percentage discount fixed"`
	Value       decimal.Decimal  `json:"value"`
	MinAmount   decimal.Decimal  `json:"minAmount"`
	MaxAmount   *decimal.Decimal `json:"maxAmount"`
	Total       int              `json:"total" validate:"required,gte=1"`
	StartTime   time.Time        `json:"startTime" validate:"required"`
	EndTime     time.Time        `json:"endTime" validate:"required,gtfield=StartTime"`
	Description string           `json:"description"`
}

type UpdateCouponRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=100"`
	Kind        *string          `json:"type" validate:"omitempty,oneof=percentage discount fixed"`
	Value       *decimal.Decimal `json:"value"`
	MinAmount   *decimal.Decimal `json:"minAmount"`
	MaxAmount   *decimal.Decimal `json:"maxAmount"`
	Total       *int             `json:"total" validate:"omitempty,gte=1"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active inactive"`
	StartTime   *time.Time       `json:"startTime"`
	EndTime     *time.Time       `json:"endTime"`
	Description *string          `json:"description"`
}

func (req UpdateCouponRequest) patch() usecase.CouponPatch {
	p := usecase.CouponPatch{
		Name:        req.Name,
		Value:       req.Value,
		MinAmount:   req.MinAmount,
		MaxAmount:   req.MaxAmount,
		Total:       req.Total,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Description: req.Description,
	}
	if req.Kind != nil {
		k := domain.CouponKind(*req.Kind)
		p.Kind = &k
	}
	if req.Status != nil {
		s := domain.CouponStatus(*req.Status)
		p.Status = &s
	}
	return p
}

func (h *Handler) AdminListCoupons(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Coupons.ListCoupons(r.Context(), r.URL.Query().Get("status"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	paginated(w, res)
}

func (h *Handler) AdminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponRequest
	if !h.bind(w, r, &req) {
		return
	}

	c, err := h.svc.Coupons.CreateCoupon(r.Context(), domain.Coupon{
		Name:        req.Name,
		Kind:        domain.CouponKind(req.Kind),
		Value:       req.Value,
		MinAmount:   req.MinAmount,
		MaxAmount:   req.MaxAmount,
		Total:       req.Total,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, c, "coupon created")
}

func (h *Handler) AdminUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req UpdateCouponRequest
	if !h.bind(w, r, &req) {
		return
	}

	c, err := h.svc.Coupons.UpdateCoupon(r.Context(), id, req.patch())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, c, "coupon updated")
}

func (h *Handler) AdminDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Coupons.DeleteCoupon(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, nil, "coupon deleted")
}
