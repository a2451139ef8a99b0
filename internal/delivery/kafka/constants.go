package kafka

import "time"

const (
	TopicClaimRequest  = "coupon.claim.req"
	TopicClaimRetry    = "coupon.claim.retry"
	TopicOrderEvents   = "order.events"
	TopicReplyPrefix   = "coupon.reply."
	TopicRequestSuffix = ".req"
	TopicRetrySuffix   = ".retry"
	TopicDLQSuffix     = ".dlq"

	RequestTimeout = 3 * time.Second

	// MaxAttempts bounds how often a claim that failed with an internal
	// error is sent through the retry topic before it is dead-lettered.
	MaxAttempts  = 3
	RetryBackoff = 100 * time.Millisecond

	RetryHeaderNextAt = "x-next-at"
	AttemptHeaderKey  = "x-attempt"
	ErrorHeaderKey    = "x-error"

	SchemaVersion = 1
)

func ReplyTopic(instanceID string) string {
	return TopicReplyPrefix + instanceID
}
