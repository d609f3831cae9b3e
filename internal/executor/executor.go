// Package executor runs scrape commands: fetch with retry, circuit breaking
// and rate limiting, extract the price, and emit the outcome.
package executor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/raulshma/tech-ticker-sub007/internal/bus"
	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/circuitbreaker"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/retry"
	"github.com/raulshma/tech-ticker-sub007/internal/observability"
)

// errLocalWait marks a rate limiter wait that could not finish in time.
var errLocalWait = errors.New("outbound rate limit wait exceeded deadline")

// Publisher publishes messages to a stream.
type Publisher interface {
	Publish(ctx context.Context, stream, msgType string, v any) (string, error)
}

// Result is the product of executing one command.
type Result struct {
	Outcome domain.OutcomeEvent
	Raw     *domain.RawPricePoint
}

// Executor executes scrape commands. It is safe for concurrent use; one
// breaker and one limiter are shared by all workers of the pool.
type Executor struct {
	cfg               Config
	client            *http.Client
	breaker           *circuitbreaker.Breaker
	limiter           *rate.Limiter
	retryCfg          retry.Config
	retryableStatuses map[int]bool
	captchaMarkers    [][]byte
	publisher         Publisher
	dedupe            Deduper
	log               logger.Logger
	metrics           *observability.Metrics
	tracer            *observability.Tracer
	now               func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// WithClock overrides the time source used for timestamps and the breaker.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithDeduper enables skipping of redelivered commands.
func WithDeduper(d Deduper) Option {
	return func(e *Executor) { e.dedupe = d }
}

// New creates a new executor.
func New(cfg Config, publisher Publisher, log logger.Logger, opts ...Option) *Executor {
	cfg.SetDefaults()

	e := &Executor{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
		publisher: publisher,
		log:       log.With(logger.Component("executor")),
		tracer:    observability.NewTracer(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.retryableStatuses = make(map[int]bool, len(cfg.Retry.RetryableStatuses))
	for _, s := range cfg.Retry.RetryableStatuses {
		e.retryableStatuses[s] = true
	}
	for _, m := range cfg.CaptchaMarkers {
		e.captchaMarkers = append(e.captchaMarkers, []byte(strings.ToLower(m)))
	}

	e.retryCfg = retry.Config{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   cfg.Retry.Multiplier,
		Jitter:       *cfg.Retry.Jitter,
		IsRetryable:  isRetryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			e.log.Debug("Retrying fetch",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Error(err),
			)
		},
	}

	e.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		FailureRatio:      cfg.Breaker.FailureRatio,
		MinimumThroughput: cfg.Breaker.MinimumThroughput,
		SamplingWindow:    cfg.Breaker.SamplingWindow,
		CoolDown:          cfg.Breaker.CoolDown,
		IsFailure:         countsAgainstBreaker,
		OnStateChange:     e.onBreakerStateChange,
		Now:               e.now,
	})
	return e
}

func (e *Executor) onBreakerStateChange(from, to circuitbreaker.State) {
	e.log.Warn("Circuit breaker state changed",
		logger.String("from", from.String()),
		logger.String("to", to.String()),
	)
	if e.metrics != nil {
		e.metrics.CircuitBreakerState.Set(float64(to))
		if to == circuitbreaker.StateOpen {
			e.metrics.CircuitBreakerOpenings.Inc()
		}
	}
}

// BreakerState returns the pool's circuit breaker state.
func (e *Executor) BreakerState() circuitbreaker.State {
	return e.breaker.State()
}

// Execute runs cmd under the overall command timeout. The returned error is
// non-nil only when ctx itself ends; every other failure is reported in the
// outcome.
func (e *Executor) Execute(ctx context.Context, cmd domain.ScrapeCommand) (*Result, error) {
	start := e.now()
	ctx, span := e.tracer.ExecuteSpan(ctx, cmd.CommandID, cmd.MappingID, cmd.URL)
	defer span.End()

	cmdCtx, cancel := context.WithTimeout(ctx, e.cfg.CommandTimeout)
	defer cancel()

	attempts := 0
	var body []byte
	err := retry.Retry(cmdCtx, e.retryCfg, func() error {
		attempts++
		page, attemptErr := e.attempt(cmdCtx, &cmd)
		if attemptErr == nil {
			body = page
		}
		return attemptErr
	})

	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var extraction *Extraction
	if err == nil {
		extraction, err = Extract(body, cmd.Selectors, cmd.SellerName)
	}

	result := e.buildResult(&cmd, attempts, extraction, e.toScrapeError(cmdCtx, err))
	observability.RecordError(span, err)
	e.observe(start, result)
	return result, nil
}

// attempt is one pass through breaker, limiter and fetch.
func (e *Executor) attempt(ctx context.Context, cmd *domain.ScrapeCommand) ([]byte, error) {
	var body []byte
	err := e.breaker.Execute(ctx, func() error {
		if waitErr := e.limiter.Wait(ctx); waitErr != nil {
			return newScrapeError(domain.FailureTransient, CodeTimeout, 0, "rate limiter wait", errors.Join(errLocalWait, waitErr))
		}
		page, fetchErr := e.fetchPage(ctx, cmd)
		body = page
		return fetchErr
	})
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return nil, newScrapeError(domain.FailureTransient, CodeCircuitOpen, 0, "circuit breaker open", err)
	}
	if _, ok := AsScrapeError(err); !ok {
		return nil, classifyTransport(err)
	}
	return nil, err
}

func (e *Executor) toScrapeError(cmdCtx context.Context, err error) *ScrapeError {
	if err == nil {
		return nil
	}
	if cmdCtx.Err() != nil && (errors.Is(err, retry.ErrContextCancelled) || errors.Is(err, context.DeadlineExceeded)) {
		return newScrapeError(domain.FailureTransient, CodeTimeout, 0, "command timeout exceeded", err)
	}
	if se, ok := AsScrapeError(err); ok {
		return se
	}
	return newScrapeError(domain.FailureTransient, CodeNetworkError, 0, err.Error(), err)
}

func (e *Executor) buildResult(cmd *domain.ScrapeCommand, attempts int, ex *Extraction, se *ScrapeError) *Result {
	now := e.now().UTC()
	result := &Result{
		Outcome: domain.OutcomeEvent{
			CommandID:     cmd.CommandID,
			MappingID:     cmd.MappingID,
			WasSuccessful: se == nil,
			Timestamp:     now,
			Attempts:      attempts,
		},
	}

	if se != nil {
		result.Outcome.FailureKind = se.Kind
		result.Outcome.ErrorCode = se.Code
		result.Outcome.ErrorMessage = se.Error()
		result.Outcome.HTTPStatusCode = se.HTTPStatus
		return result
	}

	result.Outcome.HTTPStatusCode = http.StatusOK
	result.Raw = &domain.RawPricePoint{
		CommandID:          cmd.CommandID,
		MappingID:          cmd.MappingID,
		CanonicalProductID: cmd.CanonicalProductID,
		SellerName:         cmd.SellerName,
		ScrapedPrice:       ex.Price,
		ScrapedPriceText:   ex.PriceText,
		ScrapedStockStatus: ex.StockText,
		ScrapedProductName: ex.ProductName,
		SourceURL:          cmd.URL,
		Timestamp:          now,
	}
	return result
}

func (e *Executor) observe(start time.Time, r *Result) {
	if e.metrics == nil {
		return
	}
	label := "success"
	if !r.Outcome.WasSuccessful {
		label = "failure"
	}
	e.metrics.ExecutorCommands.WithLabelValues(label, r.Outcome.ErrorCode).Inc()
	e.metrics.ExecutorDuration.Observe(e.now().Sub(start).Seconds())
}

// HandleMessage is the bus handler for the command stream. It emits the raw
// point (on success) before the outcome, then marks the command executed.
func (e *Executor) HandleMessage(ctx context.Context, msg bus.Message) error {
	cmd, err := bus.Decode[domain.ScrapeCommand](msg)
	if err != nil {
		return err
	}
	log := e.log.With(logger.CommandID(cmd.CommandID), logger.MappingID(cmd.MappingID))

	if err = cmd.Validate(); err != nil {
		if cmd.CommandID == "" || cmd.MappingID <= 0 {
			return bus.Permanent(err)
		}
		log.Warn("Invalid scrape command", logger.Error(err))
		se := newScrapeError(domain.FailureStructural, CodeInvalidCommand, 0, err.Error(), err)
		return e.emit(ctx, e.buildResult(&cmd, 0, nil, se))
	}

	if e.dedupe != nil {
		seen, seenErr := e.dedupe.Seen(ctx, cmd.CommandID)
		if seenErr != nil {
			return seenErr
		}
		if seen {
			log.Info("Skipping already executed command")
			if e.metrics != nil {
				e.metrics.ExecutorDuplicates.Inc()
			}
			return nil
		}
	}

	result, err := e.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	if err = e.emit(ctx, result); err != nil {
		return err
	}

	if result.Outcome.WasSuccessful {
		log.Info("Scrape succeeded",
			logger.Float64("price", result.Raw.ScrapedPrice),
			logger.Int("attempts", result.Outcome.Attempts),
		)
	} else {
		log.Warn("Scrape failed",
			logger.String("failure_kind", string(result.Outcome.FailureKind)),
			logger.String("error_code", result.Outcome.ErrorCode),
			logger.Int("http_status", result.Outcome.HTTPStatusCode),
			logger.Int("attempts", result.Outcome.Attempts),
		)
	}

	if e.dedupe != nil {
		if markErr := e.dedupe.Mark(ctx, cmd.CommandID); markErr != nil {
			log.Warn("Could not mark command executed", logger.Error(markErr))
		}
	}
	return nil
}

func (e *Executor) emit(ctx context.Context, r *Result) error {
	if r.Raw != nil {
		if _, err := e.publisher.Publish(ctx, bus.StreamRaw, bus.TypeRawPricePoint, r.Raw); err != nil {
			return err
		}
	}
	_, err := e.publisher.Publish(ctx, bus.StreamOutcomes, bus.TypeOutcomeEvent, r.Outcome)
	return err
}
