package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/usecase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

type OrderEvent struct {
	SchemaVersion  int                `json:"schema_version"`
	EventID        string             `json:"event_id"`
	Type           string             `json:"type"`
	OrderID        int64              `json:"order_id"`
	OrderNo        string             `json:"order_no"`
	UserID         int64              `json:"user_id"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	PayAmount      decimal.Decimal    `json:"pay_amount"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// EventPublisher writes order events to the order.events topic, keyed by
// order id so that one order's events stay ordered.
type EventPublisher struct {
	producer Producer
	now      func() time.Time
}

func NewEventPublisher(producer Producer) *EventPublisher {
	return &EventPublisher{producer: producer, now: time.Now}
}

func (p *EventPublisher) OrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, p.event(EventOrderCreated, order, ""))
}

func (p *EventPublisher) OrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	return p.publish(ctx, p.event(EventOrderStatusChanged, order, from))
}

func (p *EventPublisher) event(typ string, order *domain.Order, from domain.OrderStatus) OrderEvent {
	return OrderEvent{
		SchemaVersion:  SchemaVersion,
		EventID:        uuid.NewString(),
		Type:           typ,
		OrderID:        order.ID,
		OrderNo:        order.OrderNo,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: from,
		PayAmount:      order.PayAmount,
		OccurredAt:     p.now().UTC(),
	}
}

func (p *EventPublisher) publish(ctx context.Context, ev OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	record := &kgo.Record{
		Topic: TopicOrderEvents,
		Key:   []byte(strconv.FormatInt(ev.OrderID, 10)),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) OrderCreated(context.Context, *domain.Order) error { return nil }

func (NopPublisher) OrderStatusChanged(context.Context, *domain.Order, domain.OrderStatus) error {
	return nil
}

var (
	_ usecase.OrderEvents = (*EventPublisher)(nil)
	_ usecase.OrderEvents = NopPublisher{}
)
