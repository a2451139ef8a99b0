package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/azizikri/storefront/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the part of *kgo.Client the consumer writes through.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Consumer serves claim requests off the request topic and answers on the
// caller's reply topic.
type Consumer struct {
	client   *kgo.Client
	producer Producer
	claims   usecase.CouponGateway
	ready    chan struct{}
	now      func() time.Time
}

func NewConsumer(client *kgo.Client, claims usecase.CouponGateway) *Consumer {
	return &Consumer{
		client:   client,
		producer: client,
		claims:   claims,
		ready:    make(chan struct{}),
		now:      time.Now,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	close(c.ready)
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			logger.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("consumer poll error")
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			c.processRecord(ctx, iter.Next())
		}

		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			logger.Error().Err(err).Msg("commit records")
		}
	}
}

// StartRetry moves records from the retry topic back onto the request topic
// once their backoff has elapsed.
func (c *Consumer) StartRetry(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()

			if nextAt, ok := retryNextAt(record); ok {
				if wait := nextAt.Sub(c.now()); wait > 0 {
					select {
					case <-time.After(wait):
					case <-ctx.Done():
						return
					}
				}
			}

			if err := c.producer.ProduceSync(ctx, requeue(record)).FirstErr(); err != nil {
				logger.Error().Err(err).Str("topic", record.Topic).Msg("requeue retry record")
			}
		}
		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			logger.Error().Err(err).Msg("commit retry records")
		}
	}
}

func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

func requeue(record *kgo.Record) *kgo.Record {
	return &kgo.Record{
		Topic:   strings.TrimSuffix(record.Topic, TopicRetrySuffix) + TopicRequestSuffix,
		Key:     record.Key,
		Value:   record.Value,
		Headers: record.Headers,
	}
}

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) {
	if record.Topic == TopicClaimRequest {
		c.handleClaim(ctx, record)
	}
}

func (c *Consumer) handleClaim(ctx context.Context, record *kgo.Record) {
	var req ClaimRequest
	if err := json.Unmarshal(record.Value, &req); err != nil {
		c.deadLetter(ctx, record, req, ErrCodeInvalidRequest, "invalid request payload")
		return
	}
	if req.UserID < 1 || req.CouponID < 1 {
		c.deadLetter(ctx, record, req, ErrCodeInvalidRequest, "user_id and coupon_id are required")
		return
	}

	uc, err := c.claims.ClaimCoupon(ctx, req.UserID, req.CouponID)
	if err == nil {
		c.sendResponse(ctx, req.ReplyTo, successResponse(req.CorrelationID, uc))
		return
	}

	code := errorCode(err)
	if code != ErrCodeInternalError {
		c.sendResponse(ctx, req.ReplyTo, errorResponse(req.CorrelationID, code, err.Error()))
		return
	}

	attempt := recordAttempt(record)
	zerolog.Ctx(ctx).Warn().Err(err).
		Str("correlation_id", req.CorrelationID).
		Int("attempt", attempt).
		Msg("claim failed")
	if attempt >= MaxAttempts {
		c.deadLetter(ctx, record, req, code, err.Error())
		return
	}
	c.retry(ctx, record, attempt)
}

func (c *Consumer) retry(ctx context.Context, record *kgo.Record, attempt int) {
	next := c.now().Add(RetryBackoff * time.Duration(attempt))
	retryRecord := &kgo.Record{
		Topic: strings.TrimSuffix(record.Topic, TopicRequestSuffix) + TopicRetrySuffix,
		Key:   record.Key,
		Value: record.Value,
		Headers: []kgo.RecordHeader{
			{Key: RetryHeaderNextAt, Value: []byte(next.UTC().Format(time.RFC3339Nano))},
			{Key: AttemptHeaderKey, Value: []byte(strconv.Itoa(attempt + 1))},
		},
	}
	if err := c.producer.ProduceSync(ctx, retryRecord).FirstErr(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("produce retry record")
	}
}

func (c *Consumer) sendResponse(ctx context.Context, topic string, resp *ResponsePayload) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("correlation_id", resp.CorrelationID).Msg("encode reply")
		return
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(resp.CorrelationID),
		Value: payload,
	}
	if err := c.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("send reply")
	}
}

// deadLetter answers the caller, when it can be identified, and parks the
// record on the DLQ topic.
func (c *Consumer) deadLetter(ctx context.Context, record *kgo.Record, req ClaimRequest, code, message string) {
	c.sendResponse(ctx, req.ReplyTo, errorResponse(req.CorrelationID, code, message))

	dlqRecord := &kgo.Record{
		Topic: record.Topic + TopicDLQSuffix,
		Key:   record.Key,
		Value: record.Value,
		Headers: []kgo.RecordHeader{
			{Key: ErrorHeaderKey, Value: []byte(message)},
		},
	}
	if err := c.producer.ProduceSync(ctx, dlqRecord).FirstErr(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("produce dlq record")
	}
}

func recordAttempt(record *kgo.Record) int {
	for _, header := range record.Headers {
		if header.Key != AttemptHeaderKey {
			continue
		}
		if n, err := strconv.Atoi(string(header.Value)); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

func retryNextAt(record *kgo.Record) (time.Time, bool) {
	for _, header := range record.Headers {
		if header.Key != RetryHeaderNextAt {
			continue
		}
		nextAt, err := time.Parse(time.RFC3339Nano, string(header.Value))
		if err != nil {
			return time.Time{}, false
		}
		return nextAt, true
	}

	return time.Time{}, false
}
