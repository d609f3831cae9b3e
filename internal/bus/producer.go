package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/raulshma/tech-ticker-sub007/internal/observability"
)

// DefaultMaxStreamLen caps stream growth.
const DefaultMaxStreamLen = 100000

// Publisher appends JSON messages to streams. A returned entry ID is the
// publish acknowledgement.
type Publisher struct {
	client       redis.UniversalClient
	maxStreamLen int64
	metrics      *observability.Metrics
}

// PublisherConfig holds configuration for the Publisher.
type PublisherConfig struct {
	MaxStreamLen int64 // Approximate MAXLEN (0 = default)
}

// NewPublisher creates a new publisher. metrics may be nil.
func NewPublisher(client redis.UniversalClient, cfg PublisherConfig, metrics *observability.Metrics) *Publisher {
	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = DefaultMaxStreamLen
	}
	return &Publisher{client: client, maxStreamLen: maxLen, metrics: metrics}
}

// Publish serializes v and appends it to stream with msgType.
func (p *Publisher) Publish(ctx context.Context, stream, msgType string, v any) (string, error) {
	if v == nil {
		return "", errors.New("message cannot be nil")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize %s: %w", msgType, err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxStreamLen,
		Approx: true,
		Values: map[string]any{
			FieldType:    msgType,
			FieldPayload: string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", stream, err)
	}

	if p.metrics != nil {
		p.metrics.BusPublished.WithLabelValues(stream).Inc()
	}
	return id, nil
}
