// Package bus decouples content ingestion from analysis through two Redis
// Streams channels: raw-content and analysis-results.
package bus

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream keys for the two logical channels.
const (
	RawContentStream      = "credcheck:raw-content"
	AnalysisResultsStream = "credcheck:analysis-results"
)

// Consumer group names. One group per channel; multiple processes joining
// the same group fan raw-content processing out across consumers.
const (
	ContentGroup = "credcheck-content-group"
	ResultsGroup = "credcheck-results-group"
)

// Field names of the stream message envelope.
const (
	fieldKey       = "key"
	fieldPayload   = "payload"
	fieldTimestamp = "timestamp"
)

// NewClient connects to the broker at the given URL and verifies the
// connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// ensureGroup creates the consumer group if it does not exist yet.
func ensureGroup(ctx context.Context, client streamClient, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}
