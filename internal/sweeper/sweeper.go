// Package sweeper runs the periodic maintenance pass: it expires stale
// entries and flushes learning statistics. Entries are processed in paced
// batches so a large store never starves foreground calls.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/internal/shared/rate"
	"github.com/projectlens/go-context-cache/internal/store"
)

var ErrSweeperNotResponded = errors.New("sweeper not responded")

type Sweeper interface {
	ForceSweep(timeout time.Duration) error
	Metrics() (sweeps, expired int64)
	Close() error
}

type Worker struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.SweepCfg
	db     *store.Store
	clock  clock.Clock
	jitter *rate.Jitter
	logger *slog.Logger

	// expire removes one stale entry through the engine's invalidation
	// path so watches and durable records are torn down with it.
	expire func(ctx context.Context, key string) bool

	// flush persists the learning statistics.
	flush func(ctx context.Context)

	counters *sweeperCounters
	invokeCh chan struct{}
}

func New(
	ctx context.Context,
	cfg config.SweepCfg,
	db *store.Store,
	clk clock.Clock,
	expire func(ctx context.Context, key string) bool,
	flush func(ctx context.Context),
	logger *slog.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(ctx)
	return (&Worker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		db:       db,
		clock:    clk,
		jitter:   rate.NewJitter(ctx, cfg.Rate),
		logger:   logger,
		expire:   expire,
		flush:    flush,
		counters: newSweeperCounters(),
		invokeCh: make(chan struct{}),
	}).run()
}

// ForceSweep triggers a sweep out of schedule, waiting up to timeout for
// the worker to pick it up.
func (w *Worker) ForceSweep(timeout time.Duration) error {
	after := time.NewTimer(timeout)
	defer after.Stop()

	select {
	case <-w.ctx.Done():
	case w.invokeCh <- struct{}{}:
	case <-after.C:
		return ErrSweeperNotResponded
	}
	return nil
}

func (w *Worker) Metrics() (sweeps, expired int64) {
	return w.counters.snapshot()
}

func (w *Worker) Close() error {
	w.cancel()
	return nil
}

func (w *Worker) run() *Worker {
	w.logger.Info("sweeper is running", "interval", w.cfg.Interval.String(), "batch_size", w.cfg.BatchSize)

	go func() {
		defer w.logger.Info("sweeper is stopped")

		ticker := w.clock.Ticker(w.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.sweep()
			case <-w.invokeCh:
				w.sweep()
			}
		}
	}()

	return w
}

// sweep walks a snapshot of the keys in batches, yielding to the pacer
// between batches, then flushes the learning table.
func (w *Worker) sweep() {
	w.counters.sweeps.Add(1)

	keys := w.db.Keys()
	for i, key := range keys {
		if i > 0 && i%w.cfg.BatchSize == 0 {
			select {
			case <-w.ctx.Done():
				return
			case <-w.jitter.Chan():
			}
		}
		if w.db.IsExpired(key) && w.expire(w.ctx, key) {
			w.counters.expired.Add(1)
		}
	}

	w.flush(w.ctx)
}
