package bus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/observability"
)

const (
	defaultPrefetch        = 10
	defaultBlockTimeout    = 5 * time.Second
	defaultMaxDeliveries   = 5
	defaultClaimMinIdle    = 2 * time.Minute
	defaultReclaimInterval = 30 * time.Second
	maxPendingCheck        = 100
	errorBackoff           = time.Second
)

// Handler processes one message. A nil return acknowledges it; an error
// leaves it pending for redelivery unless marked Permanent.
type Handler func(ctx context.Context, msg Message) error

// ConsumerConfig holds configuration for a Consumer.
type ConsumerConfig struct {
	Stream          string
	Group           string
	ConsumerID      string
	Prefetch        int64         // Messages per read (0 = default)
	Concurrency     int           // Handlers running at once (0 = Prefetch)
	BlockTimeout    time.Duration // Block timeout for reads (0 = default)
	MaxDeliveries   int64         // Deliveries before dead-lettering (0 = default)
	ClaimMinIdle    time.Duration // Idle time before another consumer may claim (0 = default)
	ReclaimInterval time.Duration // Pending scan interval (0 = default)
	DeadLetter      string        // Dead-letter stream (empty = StreamDeadLetter)
}

func (c *ConsumerConfig) setDefaults() {
	if c.Prefetch <= 0 {
		c.Prefetch = defaultPrefetch
	}
	if c.Concurrency <= 0 {
		c.Concurrency = int(c.Prefetch)
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = defaultBlockTimeout
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = defaultMaxDeliveries
	}
	if c.ClaimMinIdle <= 0 {
		c.ClaimMinIdle = defaultClaimMinIdle
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = defaultReclaimInterval
	}
	if c.DeadLetter == "" {
		c.DeadLetter = StreamDeadLetter
	}
}

// Consumer reads a stream through a consumer group and dispatches entries
// to a handler with bounded concurrency.
type Consumer struct {
	client  redis.UniversalClient
	cfg     ConsumerConfig
	handler Handler
	log     logger.Logger
	metrics *observability.Metrics
}

// NewConsumer creates a new consumer. metrics may be nil.
func NewConsumer(
	client redis.UniversalClient,
	cfg ConsumerConfig,
	handler Handler,
	log logger.Logger,
	metrics *observability.Metrics,
) (*Consumer, error) {
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, errors.New("stream and group are required")
	}
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	cfg.setDefaults()

	return &Consumer{
		client:  client,
		cfg:     cfg,
		handler: handler,
		log: log.With(
			logger.Component("consumer"),
			logger.String("stream", cfg.Stream),
			logger.String("group", cfg.Group),
			logger.String("consumer_id", cfg.ConsumerID),
		),
		metrics: metrics,
	}, nil
}

// Run consumes until ctx is cancelled. It creates the group, then runs the
// read loop and the reclaim loop side by side.
func (c *Consumer) Run(ctx context.Context) error {
	if err := EnsureGroup(ctx, c.client, c.cfg.Stream, c.cfg.Group); err != nil {
		return err
	}

	c.log.Info("Consumer started",
		logger.Int64("prefetch", c.cfg.Prefetch),
		logger.Int("concurrency", c.cfg.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.reclaimLoop(gctx) })

	err := g.Wait()
	c.log.Info("Consumer stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Consumer) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("Stream read failed", logger.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(errorBackoff):
			}
		}
	}
}

func (c *Consumer) reclaimLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.Reclaim(ctx); err != nil && ctx.Err() == nil {
				c.log.Warn("Pending reclaim failed", logger.Error(err))
			}
		}
	}
}

// Poll reads one batch of new entries and processes it. It returns the
// number of entries read.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.ConsumerID,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.Prefetch,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read from %s: %w", c.cfg.Stream, err)
	}

	var messages []redis.XMessage
	for _, s := range streams {
		messages = append(messages, s.Messages...)
	}
	c.process(ctx, messages)
	return len(messages), nil
}

// Reclaim parks entries that exhausted their deliveries, then claims
// entries left idle by other consumers and processes them. It returns the
// number of entries handled either way.
func (c *Consumer) Reclaim(ctx context.Context) (int, error) {
	parked, err := c.parkExhausted(ctx)
	if err != nil {
		return parked, err
	}

	claimed, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.ConsumerID,
		MinIdle:  c.cfg.ClaimMinIdle,
		Start:    "0-0",
		Count:    c.cfg.Prefetch,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return parked, fmt.Errorf("autoclaim on %s: %w", c.cfg.Stream, err)
	}
	if len(claimed) > 0 {
		c.log.Info("Claimed idle entries", logger.Int("count", len(claimed)))
		c.process(ctx, claimed)
	}
	return parked + len(claimed), nil
}

func (c *Consumer) parkExhausted(ctx context.Context) (int, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  maxPendingCheck,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("list pending on %s: %w", c.cfg.Stream, err)
	}

	parked := 0
	for _, p := range pending {
		if p.RetryCount < c.cfg.MaxDeliveries {
			continue
		}

		entries, rangeErr := c.client.XRangeN(ctx, c.cfg.Stream, p.ID, p.ID, 1).Result()
		if rangeErr != nil {
			return parked, fmt.Errorf("load pending entry %s: %w", p.ID, rangeErr)
		}

		if len(entries) == 0 {
			// Trimmed away; nothing left to park.
			if ackErr := c.ack(ctx, p.ID); ackErr != nil {
				return parked, ackErr
			}
			continue
		}

		msg, _ := parseMessage(c.cfg.Stream, entries[0])
		if parkErr := c.deadLetter(ctx, msg, "max_deliveries", p.RetryCount, nil); parkErr != nil {
			return parked, parkErr
		}
		parked++
	}
	return parked, nil
}

func (c *Consumer) process(ctx context.Context, messages []redis.XMessage) {
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Concurrency)

	for _, raw := range messages {
		g.Go(func() error {
			c.handle(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Consumer) handle(ctx context.Context, raw redis.XMessage) {
	msg, err := parseMessage(c.cfg.Stream, raw)
	if err != nil {
		c.park(ctx, msg, err)
		return
	}

	if err = c.handler(ctx, msg); err != nil {
		if IsPermanent(err) {
			c.park(ctx, msg, err)
			return
		}
		if c.metrics != nil {
			c.metrics.BusHandlerError.WithLabelValues(c.cfg.Stream).Inc()
		}
		c.log.Warn("Handler failed, entry left pending",
			logger.String("entry_id", msg.ID),
			logger.String("type", msg.Type),
			logger.Error(err),
		)
		return
	}

	if ackErr := c.ack(ctx, msg.ID); ackErr != nil {
		c.log.Error("Acknowledge failed", logger.String("entry_id", msg.ID), logger.Error(ackErr))
	}
}

func (c *Consumer) park(ctx context.Context, msg Message, cause error) {
	if err := c.deadLetter(ctx, msg, "malformed", 1, cause); err != nil {
		c.log.Error("Dead-letter failed", logger.String("entry_id", msg.ID), logger.Error(err))
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg Message, reason string, deliveries int64, cause error) error {
	values := map[string]any{
		fieldSourceStream: c.cfg.Stream,
		fieldSourceID:     msg.ID,
		fieldGroup:        c.cfg.Group,
		fieldReason:       reason,
		fieldDeliveries:   strconv.FormatInt(deliveries, 10),
		FieldType:         msg.Type,
		FieldPayload:      string(msg.Payload),
	}
	if cause != nil {
		values[fieldError] = cause.Error()
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DeadLetter,
		MaxLen: DefaultMaxStreamLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("park %s in %s: %w", msg.ID, c.cfg.DeadLetter, err)
	}

	if c.metrics != nil {
		c.metrics.BusDeadLettered.WithLabelValues(c.cfg.Stream, reason).Inc()
	}
	c.log.Warn("Entry dead-lettered",
		logger.String("entry_id", msg.ID),
		logger.String("reason", reason),
		logger.Int64("deliveries", deliveries),
	)
	return c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("ack %s on %s: %w", id, c.cfg.Stream, err)
	}
	if c.metrics != nil {
		c.metrics.BusAcked.WithLabelValues(c.cfg.Stream).Inc()
	}
	return nil
}
