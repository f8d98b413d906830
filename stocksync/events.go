package stocksync

import (
	"context"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/stockverify_backend/config"
	"bitbucket.org/mmdatafocus/stockverify_backend/utils"
)

type pubsubPublisher struct {
	topic string
}

// NewPubSubPublisherFromEnv returns the Pub/Sub event publisher, or nil when
// STOCKSYNC_TOPIC is unset so deployments without Pub/Sub simply publish
// nothing.
func NewPubSubPublisherFromEnv() EventPublisher {
	topic := strings.TrimSpace(os.Getenv("STOCKSYNC_TOPIC"))
	if topic == "" {
		return nil
	}
	return &pubsubPublisher{topic: topic}
}

func (p *pubsubPublisher) PublishSyncEvent(ctx context.Context, ev StockSyncEvent) error {
	if ev.CorrelationId == "" {
		if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
			ev.CorrelationId = cid
		}
	}
	_, err := config.PublishJSON(ctx, p.topic, ev)
	return err
}
