package http

import (
	"net/http"

	"github.com/azizikri/storefront/internal/domain"
)

type AddressRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	Phone     string `json:"phone" validate:"required,mobile"`
	Province  string `json:"province" validate:"required,max=50"`
	City      string `json:"city" validate:"required,max=50"`
	District  string `json:"district" validate:"required,max=50"`
	Detail    string `json:"detail" validate:"required,max=200"`
	IsDefault bool   `json:"isDefault"`
}

func (req AddressRequest) address(userID int64) domain.Address {
	return domain.Address{
		UserID:    userID,
		Name:      req.Name,
		Phone:     req.Phone,
		Province:  req.Province,
		City:      req.City,
		District:  req.District,
		Detail:    req.Detail,
		IsDefault: req.IsDefault,
	}
}

type ClaimRequest struct {
	CouponID int64 `json:"couponId" validate:"required,gte=1"`
}

func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Addresses.ListAddresses(r.Context(), identity(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Address{}
	}
	ok(w, list, "ok")
}

func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	a, err := h.svc.Addresses.GetAddress(r.Context(), id, identity(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, a, "ok")
}

func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if !h.bind(w, r, &req) {
		return
	}

	a, err := h.svc.Addresses.CreateAddress(r.Context(), req.address(identity(r).UserID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, a, "address created")
}

func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req AddressRequest
	if !h.bind(w, r, &req) {
		return
	}

	in := req.address(identity(r).UserID)
	in.ID = id
	a, err := h.svc.Addresses.UpdateAddress(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, a, "address updated")
}

func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Addresses.DeleteAddress(r.Context(), id, identity(r).UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, nil, "address deleted")
}

func (h *Handler) ClaimCoupon(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if !h.bind(w, r, &req) {
		return
	}

	uc, err := h.svc.Claims.ClaimCoupon(r.Context(), identity(r).UserID, req.CouponID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, uc, "coupon claimed")
}

func (h *Handler) ListUserCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Coupons.ListUserCoupons(r.Context(), identity(r).UserID, r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.UserCoupon{}
	}
	ok(w, list, "ok")
}

func (h *Handler) ListAvailableCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Coupons.ListAvailableCoupons(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Coupon{}
	}
	ok(w, list, "ok")
}
