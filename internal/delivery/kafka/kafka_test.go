package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/azizikri/storefront/internal/config"
	"github.com/azizikri/storefront/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	// onProduce runs after a record is captured.
	onProduce func(*kgo.Record)
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.mu.Lock()
		p.records = append(p.records, r)
		p.mu.Unlock()
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
		if p.err == nil && p.onProduce != nil {
			p.onProduce(r)
		}
	}
	return results
}

func (p *fakeProducer) byTopic(topic string) []*kgo.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*kgo.Record
	for _, r := range p.records {
		if r.Topic == topic {
			out = append(out, r)
		}
	}
	return out
}

type claimFunc func(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error)

func (f claimFunc) ClaimCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	return f(ctx, userID, couponID)
}

func newTestConsumer(p *fakeProducer, claim claimFunc) *Consumer {
	return &Consumer{producer: p, claims: claim, ready: make(chan struct{}), now: func() time.Time { return testNow }}
}

func claimRecord(t *testing.T, req ClaimRequest, headers ...kgo.RecordHeader) *kgo.Record {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return &kgo.Record{Topic: TopicClaimRequest, Key: []byte("3"), Value: payload, Headers: headers}
}

func decodeReply(t *testing.T, r *kgo.Record) ResponsePayload {
	t.Helper()
	var resp ResponsePayload
	require.NoError(t, json.Unmarshal(r.Value, &resp))
	return resp
}

const replyTopic = "coupon.reply.test"

func TestConsumer_ClaimSuccess(t *testing.T) {
	p := &fakeProducer{}
	c := newTestConsumer(p, func(_ context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
		return &domain.UserCoupon{ID: 11, UserID: userID, CouponID: couponID, Status: domain.UserCouponAvailable}, nil
	})

	c.processRecord(context.Background(), claimRecord(t, ClaimRequest{
		SchemaVersion: SchemaVersion, CorrelationID: "c-1", ReplyTo: replyTopic, UserID: 7, CouponID: 3,
	}))

	replies := p.byTopic(replyTopic)
	require.Len(t, replies, 1)
	resp := decodeReply(t, replies[0])
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "c-1", resp.CorrelationID)
	require.NotNil(t, resp.UserCoupon)
	assert.Equal(t, int64(7), resp.UserCoupon.UserID)
	assert.Equal(t, int64(3), resp.UserCoupon.CouponID)
}

func TestConsumer_UnencodableReplyIsLogged(t *testing.T) {
	p := &fakeProducer{}
	c := newTestConsumer(p, func(_ context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
		// encoding/json rejects years past 9999.
		return &domain.UserCoupon{UserID: userID, CouponID: couponID, CreatedAt: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
	})
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	c.processRecord(ctx, claimRecord(t, ClaimRequest{CorrelationID: "c-2", ReplyTo: replyTopic, UserID: 7, CouponID: 3}))

	assert.Empty(t, p.byTopic(replyTopic))
	assert.Contains(t, buf.String(), "encode reply")
	assert.Contains(t, buf.String(), "c-2")
}

func TestConsumer_DomainErrorsAreReplied(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{err: domain.Errorf(domain.ErrNotFound, "coupon not found"), code: ErrCodeNotFound},
		{err: domain.ErrAlreadyClaimed, code: ErrCodeAlreadyClaimed},
		{err: domain.ErrSoldOut, code: ErrCodeSoldOut},
		{err: domain.ErrCouponIneligible, code: ErrCodeInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			p := &fakeProducer{}
			c := newTestConsumer(p, func(context.Context, int64, int64) (*domain.UserCoupon, error) { return nil, tt.err })

			c.processRecord(context.Background(), claimRecord(t, ClaimRequest{CorrelationID: "c", ReplyTo: replyTopic, UserID: 1, CouponID: 3}))

			replies := p.byTopic(replyTopic)
			require.Len(t, replies, 1)
			resp := decodeReply(t, replies[0])
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.Empty(t, p.byTopic(TopicClaimRetry))
			assert.Empty(t, p.byTopic(TopicClaimRequest+TopicDLQSuffix))
		})
	}
}

func TestConsumer_InternalErrorIsRetried(t *testing.T) {
	p := &fakeProducer{}
	c := newTestConsumer(p, func(context.Context, int64, int64) (*domain.UserCoupon, error) {
		return nil, errors.New("connection reset")
	})

	c.processRecord(context.Background(), claimRecord(t, ClaimRequest{CorrelationID: "c", ReplyTo: replyTopic, UserID: 1, CouponID: 3}))

	assert.Empty(t, p.byTopic(replyTopic))
	retries := p.byTopic(TopicClaimRetry)
	require.Len(t, retries, 1)
	assert.Equal(t, 2, recordAttempt(retries[0]))
	nextAt, ok := retryNextAt(retries[0])
	require.True(t, ok)
	assert.Equal(t, testNow.Add(RetryBackoff), nextAt)

	requeued := requeue(retries[0])
	assert.Equal(t, TopicClaimRequest, requeued.Topic)
	assert.Equal(t, retries[0].Value, requeued.Value)
}

func TestConsumer_DeadLettersAfterMaxAttempts(t *testing.T) {
	p := &fakeProducer{}
	c := newTestConsumer(p, func(context.Context, int64, int64) (*domain.UserCoupon, error) {
		return nil, errors.New("connection reset")
	})

	c.processRecord(context.Background(), claimRecord(t,
		ClaimRequest{CorrelationID: "c", ReplyTo: replyTopic, UserID: 1, CouponID: 3},
		kgo.RecordHeader{Key: AttemptHeaderKey, Value: []byte("3")},
	))

	assert.Empty(t, p.byTopic(TopicClaimRetry))
	require.Len(t, p.byTopic(TopicClaimRequest+TopicDLQSuffix), 1)
	replies := p.byTopic(replyTopic)
	require.Len(t, replies, 1)
	assert.Equal(t, ErrCodeInternalError, decodeReply(t, replies[0]).ErrorCode)
}

func TestConsumer_InvalidPayload(t *testing.T) {
	p := &fakeProducer{}
	c := newTestConsumer(p, func(context.Context, int64, int64) (*domain.UserCoupon, error) {
		t.Fatal("claim must not be attempted")
		return nil, nil
	})

	c.processRecord(context.Background(), &kgo.Record{Topic: TopicClaimRequest, Value: []byte("{not json")})
	c.processRecord(context.Background(), claimRecord(t, ClaimRequest{CorrelationID: "c", ReplyTo: replyTopic}))

	dlq := p.byTopic(TopicClaimRequest + TopicDLQSuffix)
	require.Len(t, dlq, 2)
	assert.Equal(t, ErrorHeaderKey, dlq[0].Headers[0].Key)
	replies := p.byTopic(replyTopic)
	require.Len(t, replies, 1)
	assert.Equal(t, ErrCodeInvalidRequest, decodeReply(t, replies[0]).ErrorCode)
}

// The gateway and consumer talk through a fake broker: requests produced by
// the gateway are served by the consumer and its replies routed back.
func TestGateway_RoundTrip(t *testing.T) {
	gwProducer := &fakeProducer{}
	gw := NewGateway(gwProducer, "test")

	consumerProducer := &fakeProducer{}
	consumerProducer.onProduce = func(r *kgo.Record) {
		if r.Topic == replyTopic {
			gw.HandleResponse(context.Background(), r.Value)
		}
	}
	claims := map[int64]bool{}
	var mu sync.Mutex
	consumer := newTestConsumer(consumerProducer, func(_ context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
		mu.Lock()
		defer mu.Unlock()
		if claims[userID] {
			return nil, domain.ErrAlreadyClaimed
		}
		claims[userID] = true
		return &domain.UserCoupon{UserID: userID, CouponID: couponID}, nil
	})
	gwProducer.onProduce = func(r *kgo.Record) {
		go consumer.processRecord(context.Background(), r)
	}

	uc, err := gw.ClaimCoupon(context.Background(), 5, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), uc.UserID)

	_, err = gw.ClaimCoupon(context.Background(), 5, 3)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	sent := gwProducer.byTopic(TopicClaimRequest)
	require.Len(t, sent, 2)
	assert.Equal(t, []byte("3"), sent[0].Key)
}

func TestGateway_Timeout(t *testing.T) {
	gw := NewGateway(&fakeProducer{}, "test")
	gw.timeout = 20 * time.Millisecond

	_, err := gw.ClaimCoupon(context.Background(), 1, 1)

	assert.ErrorIs(t, err, ErrReplyTimeout)
}

func TestGateway_ProduceError(t *testing.T) {
	gw := NewGateway(&fakeProducer{err: errors.New("broker down")}, "test")

	_, err := gw.ClaimCoupon(context.Background(), 1, 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestDecodeError(t *testing.T) {
	assert.ErrorIs(t, decodeError(ErrCodeNotFound, "coupon not found"), domain.ErrNotFound)
	assert.ErrorIs(t, decodeError(ErrCodeSoldOut, ""), domain.ErrSoldOut)
	assert.ErrorIs(t, decodeError(ErrCodeInvalidState, "coupon cannot be used"), domain.ErrInvalidState)
	assert.ErrorIs(t, decodeError(ErrCodeInvalidRequest, "bad"), domain.ErrInvalidInput)

	err := decodeError(ErrCodeInternalError, "boom")
	assert.EqualError(t, err, "boom")
	assert.NotErrorIs(t, err, domain.ErrInvalidState)
}

func TestEventPublisher(t *testing.T) {
	p := &fakeProducer{}
	pub := NewEventPublisher(p)
	pub.now = func() time.Time { return testNow }
	order := &domain.Order{ID: 12, OrderNo: "20250601123456", UserID: 4, Status: domain.OrderCancelled, PayAmount: decimal.NewFromInt(82)}

	require.NoError(t, pub.OrderStatusChanged(context.Background(), order, domain.OrderPending))

	records := p.byTopic(TopicOrderEvents)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("12"), records[0].Key)

	var ev OrderEvent
	require.NoError(t, json.Unmarshal(records[0].Value, &ev))
	assert.Equal(t, EventOrderStatusChanged, ev.Type)
	assert.Equal(t, domain.OrderCancelled, ev.Status)
	assert.Equal(t, domain.OrderPending, ev.PreviousStatus)
	assert.True(t, ev.PayAmount.Equal(decimal.NewFromInt(82)))
	assert.Equal(t, testNow, ev.OccurredAt)
	assert.NotEmpty(t, ev.EventID)
}

func TestEventPublisher_ProduceError(t *testing.T) {
	pub := NewEventPublisher(&fakeProducer{err: errors.New("broker down")})

	err := pub.OrderCreated(context.Background(), &domain.Order{ID: 1})

	assert.ErrorContains(t, err, "publish order.created")
}

func TestTopics(t *testing.T) {
	topics := Topics(&config.Config{KafkaInstanceID: "node-a"})

	assert.ElementsMatch(t, []string{
		"coupon.claim.req",
		"coupon.claim.retry",
		"coupon.claim.req.dlq",
		"order.events",
		"coupon.reply.node-a",
	}, topics)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	assert.Equal(t, kgo.LogLevelWarn, l.Level())

	l.Log(kgo.LogLevelWarn, "metadata refresh failed", "broker", 1, "err", "eof")
	l.Log(kgo.LogLevelDebug, "ignored")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "metadata refresh failed", line["message"])
	assert.Equal(t, "kafka", line["component"])
	assert.Equal(t, float64(1), line["broker"])
	assert.Equal(t, "eof", line["err"])
}
