package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunding OrderStatus = "refunding"
	OrderRefunded  OrderStatus = "refunded"
)

var orderStatuses = []OrderStatus{
	OrderPending, OrderPaid, OrderShipped, OrderCompleted,
	OrderCancelled, OrderRefunding, OrderRefunded,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range orderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", Errorf(ErrInvalidInput, "invalid order status %q", s)
}

// ReleasesStock reports whether entering this status hands reserved stock back.
func (s OrderStatus) ReleasesStock() bool {
	return s == OrderCancelled || s == OrderRefunded
}

type Order struct {
	ID             int64           `json:"id"`
	OrderNo        string          `json:"orderNo"`
	UserID         int64           `json:"userId"`
	Status         OrderStatus     `json:"status"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	PayAmount      decimal.Decimal `json:"payAmount"`
	Address        AddressSnapshot `json:"addressData"`
	Remark         *string         `json:"remark"`
	UserCouponID   *int64          `json:"userCouponId"`
	StockReleased  bool            `json:"-"`
	PaidAt         *time.Time      `json:"paidAt"`
	ShippedAt      *time.Time      `json:"shippedAt"`
	CompletedAt    *time.Time      `json:"completedAt"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Items          []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID        int64             `json:"id"`
	OrderID   int64             `json:"orderId"`
	ProductID int64             `json:"productId"`
	SkuID     *int64            `json:"skuId"`
	Name      string            `json:"name"`
	Image     string            `json:"image"`
	Price     decimal.Decimal   `json:"price"`
	Quantity  int               `json:"quantity"`
	Specs     map[string]string `json:"specs"`
	Product   *ProductSummary   `json:"product,omitempty"`
}

// ProductSummary is the slice of a product returned alongside a freshly
// created order's items.
type ProductSummary struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

type StockMove int

const (
	StockKept StockMove = iota
	StockRelease
	StockReserve
)

func (o *Order) Cancel() error {
	if o.Status != OrderPending {
		return Errorf(ErrIllegalTransition, "order %s cannot be cancelled in status %s", o.OrderNo, o.Status)
	}
	o.Status = OrderCancelled
	return nil
}

func (o *Order) ConfirmReceipt(now time.Time) error {
	if o.Status != OrderShipped {
		return Errorf(ErrIllegalTransition, "order %s cannot be confirmed in status %s", o.OrderNo, o.Status)
	}
	o.Status = OrderCompleted
	o.CompletedAt = &now
	return nil
}

func (o *Order) RequestRefund() error {
	switch o.Status {
	case OrderPaid, OrderShipped, OrderCompleted:
		o.Status = OrderRefunding
		return nil
	}
	return Errorf(ErrIllegalTransition, "order %s cannot be refunded in status %s", o.OrderNo, o.Status)
}

// ForceStatus is the administrative transition: any known status is allowed
// and the matching timestamp is stamped.
func (o *Order) ForceStatus(to OrderStatus, now time.Time) {
	o.Status = to
	switch to {
	case OrderPaid:
		o.PaidAt = &now
	case OrderShipped:
		o.ShippedAt = &now
	case OrderCompleted:
		o.CompletedAt = &now
	}
}

// SettleStock reconciles the order's reservation with its current status and
// reports what has to happen to stock. An order holds its units exactly while
// StockReleased is false, so units go back once however the order gets to a
// releasing status, and are taken again if it is moved back out of one.
func (o *Order) SettleStock() StockMove {
	switch releases := o.Status.ReleasesStock(); {
	case releases && !o.StockReleased:
		o.StockReleased = true
		return StockRelease
	case !releases && o.StockReleased:
		o.StockReleased = false
		return StockReserve
	}
	return StockKept
}

func (m StockMove) String() string {
	switch m {
	case StockRelease:
		return "release"
	case StockReserve:
		return "reserve"
	}
	return "kept"
}
