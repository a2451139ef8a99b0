package http

import (
	"context"
	"net/http"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/usecase"
)

type OrderItemRequest struct {
	ProductID int64  `json:"productId" validate:"required,gte=1"`
	SkuID     *int64 `json:"skuId" validate:"omitempty,gte=1"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type CreateOrderRequest struct {
	Items     []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	AddressID int64              `json:"addressId" validate:"required,gte=1"`
	// CouponID is the caller's user coupon, not the campaign.
	CouponID *int64  `json:"couponId" validate:"omitempty,gte=1"`
	Remark   *string `json:"remark" validate:"omitempty,max=200"`
}

type SetOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.bind(w, r, &req) {
		return
	}

	in := usecase.CreateOrderInput{
		UserID:       identity(r).UserID,
		AddressID:    req.AddressID,
		UserCouponID: req.CouponID,
		Remark:       req.Remark,
		Items:        make([]usecase.OrderLine, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.OrderLine{
			ProductID: it.ProductID,
			SkuID:     it.SkuID,
			Quantity:  it.Quantity,
		})
	}

	order, err := h.svc.Orders.CreateOrder(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, order, "order created")
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Orders.ListOrders(r.Context(), identity(r).UserID, r.URL.Query().Get("status"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	paginated(w, res)
}

func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	query := r.URL.Query()

	res, err := h.svc.Orders.AdminListOrders(r.Context(), query.Get("status"), query.Get("keyword"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	paginated(w, res)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.ownedOrder(w, r, "ok", h.svc.Orders.GetOrder)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.ownedOrder(w, r, "order cancelled", h.svc.Orders.CancelOrder)
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	h.ownedOrder(w, r, "order completed", h.svc.Orders.ConfirmOrder)
}

func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	h.ownedOrder(w, r, "refund requested", h.svc.Orders.RefundOrder)
}

// ownedOrder runs an operation on the order named in the path on behalf of
// the caller.
func (h *Handler) ownedOrder(w http.ResponseWriter, r *http.Request, message string,
	op func(ctx context.Context, id, userID int64) (*domain.Order, error)) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := op(r.Context(), id, identity(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, order, message)
}

func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req SetOrderStatusRequest
	if !h.bind(w, r, &req) {
		return
	}

	order, err := h.svc.Orders.SetOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, order, "order status updated")
}
