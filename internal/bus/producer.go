package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"credcheck/internal/types"
)

// Producer publishes messages to the two channels. Publishing is
// fire-and-forget from the caller's perspective: the XADD is confirmed by
// the broker before the call returns, and a delivery failure is logged but
// never surfaced as an error or retried.
type Producer struct {
	client *redis.Client
	logger *slog.Logger
}

func NewProducer(client *redis.Client, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{client: client, logger: logger}
}

// PublishRawContent puts a raw-content message on the content channel.
func (p *Producer) PublishRawContent(ctx context.Context, msg types.RawContentMessage) {
	p.publish(ctx, RawContentStream, msg.Key(), msg)
}

// PublishAnalysisResult puts a completed analysis on the results channel.
func (p *Producer) PublishAnalysisResult(ctx context.Context, msg types.AnalysisResultMessage) {
	p.publish(ctx, AnalysisResultsStream, msg.Key(), msg)
}

func (p *Producer) publish(ctx context.Context, stream, key string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to encode message", "stream", stream, "key", key, "error", err)
		return
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			fieldKey:       key,
			fieldPayload:   string(payload),
			fieldTimestamp: time.Now().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		p.logger.Error("message delivery failed", "stream", stream, "key", key, "error", err)
		return
	}

	p.logger.Debug("message delivered", "stream", stream, "key", key, "id", id)
}
