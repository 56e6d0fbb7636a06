package outbox

import (
	"context"
	"log/slog"
)

// LogProducer stands in for Kafka when no brokers are configured: every event
// is written to the log instead of a topic.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if p.Logger == nil {
		return nil
	}
	p.Logger.InfoContext(ctx, "event published", "topic", topic, "key", key, "bytes", len(payload))
	return nil
}

var _ Producer = LogProducer{}
