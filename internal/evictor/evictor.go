// Package evictor enforces the memory-size and entry-count ceilings by
// removing least-recently-used entries in batches.
package evictor

import (
	"context"
	"log/slog"
	"math"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/internal/store"
)

// batchFraction of live entries removed per pass, rounded up, minimum one.
const batchFraction = 0.10

type Evictor interface {
	// Check runs eviction passes until the store is back within its
	// ceilings and returns how many entries were removed.
	Check(ctx context.Context) int64
	Metrics() (passes, evictedItems, evictedBytes int64)
}

// New returns a no-op evictor when neither ceiling is configured.
func New(
	cfg config.MemoryCfg,
	db *store.Store,
	remove func(ctx context.Context, key string) (int64, bool),
	logger *slog.Logger,
) Evictor {
	if cfg.SizeBytes <= 0 && cfg.MaxEntries <= 0 {
		return &NoOpEvictor{}
	}
	return &LRUEvictor{
		cfg:      cfg,
		db:       db,
		remove:   remove,
		logger:   logger,
		counters: newEvictorCounters(),
	}
}

// LRUEvictor removes the oldest-accessed batch per pass. Each removal goes
// through the engine's remove callback so watches and durable records are
// torn down with the entry.
type LRUEvictor struct {
	cfg      config.MemoryCfg
	db       *store.Store
	remove   func(ctx context.Context, key string) (int64, bool)
	logger   *slog.Logger
	counters *evictorCounters
}

func (w *LRUEvictor) Check(ctx context.Context) int64 {
	var total int64

	// Each pass strictly shrinks the store, so the loop is bounded by the
	// entry count at entry.
	for w.overLimit() {
		live := w.db.Len()
		if live == 0 {
			break
		}
		batch := int64(math.Ceil(float64(live) * batchFraction))
		if batch < 1 {
			batch = 1
		}

		var removed int64
		for _, key := range w.db.EvictionCandidates(int(batch)) {
			freed, ok := w.remove(ctx, key)
			if !ok {
				continue
			}
			removed++
			w.counters.evictedItems.Add(1)
			w.counters.evictedBytes.Add(freed)
		}
		w.counters.passes.Add(1)
		total += removed

		if removed == 0 {
			break
		}
	}

	if total > 0 {
		w.logger.Debug("eviction pass finished",
			"evicted", total,
			"entries", w.db.Len(),
			"mem", w.db.Mem(),
		)
	}
	return total
}

func (w *LRUEvictor) Metrics() (passes, evictedItems, evictedBytes int64) {
	return w.counters.snapshot()
}

func (w *LRUEvictor) overLimit() bool {
	if w.cfg.SizeBytes > 0 && w.db.Mem() > w.cfg.SizeBytes {
		return true
	}
	if w.cfg.MaxEntries > 0 && w.db.Len() > w.cfg.MaxEntries {
		return true
	}
	return false
}
