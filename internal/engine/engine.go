// Package engine implements the task-assignment and reward-ledger operations
// on top of a storage backend. Every mutating operation is a single atomic
// store call; events are published only after it has committed.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andymarkow/taskmart/internal/domain/referral"
	"github.com/andymarkow/taskmart/internal/errs"
	"github.com/andymarkow/taskmart/internal/events"
	"github.com/andymarkow/taskmart/internal/metrics"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/shopspring/decimal"
)

const publishTimeout = 5 * time.Second

type Engine struct {
	log         *slog.Logger
	store       storage.Storage
	publisher   events.Publisher
	metrics     *metrics.Collector
	now         func() time.Time
	bonusRate   decimal.Decimal
	minWithdraw decimal.Decimal
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = collector
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithReferralBonusRate sets the share of a reward paid to the referrer, e.g. 0.1 for 10%.
func WithReferralBonusRate(rate decimal.Decimal) Option {
	return func(e *Engine) {
		e.bonusRate = rate
	}
}

func WithMinWithdraw(amount decimal.Decimal) Option {
	return func(e *Engine) {
		e.minWithdraw = amount
	}
}

func New(store storage.Storage, opts ...Option) (*Engine, error) {
	e := &Engine{
		log:         slog.Default(),
		store:       store,
		publisher:   events.Noop{},
		now:         time.Now,
		bonusRate:   decimal.NewFromFloat(0.1),
		minWithdraw: decimal.NewFromInt(5),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.metrics == nil {
		e.metrics = metrics.NewCollector()
	}

	e.log = e.log.With(slog.String("module", "engine"))

	if err := referral.ValidateRate(e.bonusRate); err != nil {
		return nil, fmt.Errorf("referral.ValidateRate: %w", err)
	}

	if e.minWithdraw.IsNegative() {
		return nil, errs.Invalidf("minimum withdrawal must not be negative: %s", e.minWithdraw)
	}

	return e, nil
}

// Ping checks the storage backend.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("store.Ping: %w", err)
	}

	return nil
}

// publish sends event after a commit. Failures are logged and counted but
// never change the outcome of the operation that produced the event.
func (e *Engine) publish(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := e.publisher.Publish(ctx, event)

	e.metrics.EventPublished(event.Type.String(), err)

	if err != nil {
		e.log.Error("failed to publish event",
			slog.String("type", event.Type.String()),
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()))
	}
}
