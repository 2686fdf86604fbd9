package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/internal/shared/bytes"
	"github.com/projectlens/go-context-cache/internal/stats"
	"github.com/projectlens/go-context-cache/internal/store"
	"github.com/projectlens/go-context-cache/model"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.TelemetryCfg
	logger   *slog.Logger
	tracker  *stats.Tracker
	db       *store.Store
	interval time.Duration
}

func New(
	ctx context.Context,
	cfg *config.TelemetryCfg,
	logger *slog.Logger,
	tracker *stats.Tracker,
	db *store.Store,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	var interval time.Duration
	if cfg.Enabled() {
		interval = cfg.Interval
	}
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		tracker:  tracker,
		db:       db,
		interval: interval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	if l.cfg.Enabled() && l.interval > 0 {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	prev := l.tracker.Snapshot(l.db.Len(), l.db.Mem())

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := l.tracker.Snapshot(l.db.Len(), l.db.Mem())
			d := delta(prev, cur)
			prev = cur

			common := []any{"interval", l.interval.String()}

			l.logger.Info("requests",
				append(common,
					"total", d.Requests,
					"exact_hits", d.ExactHits,
					"similarity_hits", d.SimilarityHits,
					"misses", d.Misses,
					"hit_rate", cur.HitRate,
					"avg_response", cur.AvgResponse.String(),
				)...,
			)

			if d.Evictions > 0 {
				l.logger.Info("evictor",
					append(common, "evicted", d.Evictions)...,
				)
			}

			l.logger.Info("storage",
				append(common,
					"entries", cur.Entries,
					"size", bytes.FmtMem(uint64(cur.MemBytes)),
				)...,
			)
		}
	}
}

func delta(prev, cur model.StatsSnapshot) model.StatsSnapshot {
	return model.StatsSnapshot{
		Requests:       cur.Requests - prev.Requests,
		ExactHits:      cur.ExactHits - prev.ExactHits,
		SimilarityHits: cur.SimilarityHits - prev.SimilarityHits,
		Misses:         cur.Misses - prev.Misses,
		Evictions:      cur.Evictions - prev.Evictions,
	}
}
