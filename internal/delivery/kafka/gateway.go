package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/usecase"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

var ErrReplyTimeout = errors.New("timeout waiting for claim reply")

// Gateway sends claims over Kafka and blocks until the matching reply
// arrives on this instance's reply topic.
type Gateway struct {
	producer    Producer
	replyTopic  string
	timeout     time.Duration
	pendingResp sync.Map
}

func NewGateway(producer Producer, instanceID string) *Gateway {
	return &Gateway{
		producer:   producer,
		replyTopic: ReplyTopic(instanceID),
		timeout:    RequestTimeout,
	}
}

func (g *Gateway) ClaimCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	req := ClaimRequest{
		SchemaVersion: SchemaVersion,
		CorrelationID: uuid.NewString(),
		ReplyTo:       g.replyTopic,
		UserID:        userID,
		CouponID:      couponID,
	}

	// Keyed by coupon so claims on one campaign stay on one partition.
	key := fmt.Sprintf("%d", couponID)
	resp, err := g.requestReply(ctx, TopicClaimRequest, []byte(key), req)
	if err != nil {
		return nil, err
	}
	if resp.Status == StatusError {
		return nil, decodeError(resp.ErrorCode, resp.ErrorMessage)
	}
	return resp.UserCoupon, nil
}

func (g *Gateway) requestReply(ctx context.Context, topic string, key []byte, req ClaimRequest) (*ResponsePayload, error) {
	respChan := make(chan *ResponsePayload, 1)
	g.pendingResp.Store(req.CorrelationID, respChan)
	defer g.pendingResp.Delete(req.CorrelationID)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode claim request: %w", err)
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: payload,
	}

	if err := g.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return nil, fmt.Errorf("produce claim request: %w", err)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()
	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrReplyTimeout
	}
}

// HandleResponse hands a reply to the waiting request, if any.
func (g *Gateway) HandleResponse(ctx context.Context, payload []byte) {
	logger := zerolog.Ctx(ctx)
	var resp ResponsePayload
	if err := json.Unmarshal(payload, &resp); err != nil {
		logger.Warn().Err(err).Msg("decode reply payload")
		return
	}

	if ch, ok := g.pendingResp.Load(resp.CorrelationID); ok {
		select {
		case ch.(chan *ResponsePayload) <- &resp:
		default:
		}
		return
	}

	logger.Debug().Str("correlation_id", resp.CorrelationID).Msg("no pending request for reply")
}

// PollReplies feeds records from the reply topic into HandleResponse until
// the client is closed.
func (g *Gateway) PollReplies(ctx context.Context, client *kgo.Client) {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			g.HandleResponse(ctx, iter.Next().Value)
		}
	}
}

var _ usecase.CouponGateway = (*Gateway)(nil)
