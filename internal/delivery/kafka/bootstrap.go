package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/azizikri/storefront/internal/config"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topics lists every topic this instance produces to or consumes from.
func Topics(cfg *config.Config) []string {
	return []string{
		TopicClaimRequest,
		TopicClaimRetry,
		TopicClaimRequest + TopicDLQSuffix,
		TopicOrderEvents,
		ReplyTopic(cfg.KafkaInstanceID),
	}
}

func EnsureTopics(ctx context.Context, client *kgo.Client, cfg *config.Config) error {
	adm := kadm.NewClient(client)

	partitions := cfg.TopicPartitions()
	retryPartitions := cfg.RetryPartitions()
	replicationFactor := cfg.ReplicationFactor()

	for _, topic := range Topics(cfg) {
		p := partitions
		if strings.HasSuffix(topic, TopicRetrySuffix) || strings.HasSuffix(topic, TopicDLQSuffix) {
			p = retryPartitions
		}

		resp, err := adm.CreateTopics(ctx, int32(p), replicationFactor, nil, topic)
		if err != nil {
			return fmt.Errorf("create topic %s: %w", topic, err)
		}
		for _, detail := range resp {
			if detail.Err != nil && !errors.Is(detail.Err, kerr.TopicAlreadyExists) {
				return fmt.Errorf("create topic %s: %w", detail.Topic, detail.Err)
			}
		}
	}

	zerolog.Ctx(ctx).Info().Int("count", len(Topics(cfg))).Msg("kafka topics ensured")
	return nil
}
