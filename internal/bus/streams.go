// Package bus carries pipeline messages over Redis Streams with consumer
// groups, at-least-once delivery, and a dead-letter stream.
package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Stream names.
const (
	StreamCommands   = "pricewatch:commands"
	StreamOutcomes   = "pricewatch:outcomes"
	StreamRaw        = "pricewatch:raw"
	StreamNormalized = "pricewatch:normalized"
	StreamDeadLetter = "pricewatch:deadletter"
)

// Consumer group names.
const (
	GroupExecutor   = "executor"
	GroupCorrelator = "correlator"
	GroupNormalizer = "normalizer"
	GroupRecorder   = "recorder"
)

// Message types carried in the type field.
const (
	TypeScrapeCommand   = "scrape_command"
	TypeOutcomeEvent    = "outcome_event"
	TypeRawPricePoint   = "raw_price_point"
	TypeNormalizedPoint = "normalized_price_point"
)

// Stream entry field names.
const (
	FieldType    = "type"
	FieldPayload = "payload"

	fieldSourceStream = "source_stream"
	fieldSourceID     = "source_id"
	fieldGroup        = "group"
	fieldReason       = "reason"
	fieldDeliveries   = "deliveries"
	fieldError        = "error"
)

// EnsureGroup creates group on stream, creating the stream when needed.
// An existing group is not an error.
func EnsureGroup(ctx context.Context, client redis.UniversalClient, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}
