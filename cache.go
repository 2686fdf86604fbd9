// Package contextcache is a caching and retrieval engine for expensive
// project-analysis results: a two-tier (in-memory plus durable) store with
// rule-driven invalidation, similarity-based admission across comparable
// targets, LRU eviction under configured ceilings, and access-statistics
// learning that biases warm-up preloading.
package contextcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/internal/evictor"
	"github.com/projectlens/go-context-cache/internal/invalidation"
	"github.com/projectlens/go-context-cache/internal/persist"
	"github.com/projectlens/go-context-cache/internal/similarity"
	"github.com/projectlens/go-context-cache/internal/stats"
	"github.com/projectlens/go-context-cache/internal/store"
	"github.com/projectlens/go-context-cache/internal/sweeper"
	"github.com/projectlens/go-context-cache/internal/telemetry"
	"github.com/projectlens/go-context-cache/internal/watch"
	"github.com/projectlens/go-context-cache/model"
)

var errEmptyKey = errors.New("empty cache key")

// Analyzer is the external analysis routine fronted by the engine. It is
// arbitrarily expensive and side-effect free; ScanAndCache invokes it on a
// full miss and propagates its errors unchanged.
type Analyzer interface {
	Analyze(ctx context.Context, target *model.Target) (*model.AnalysisResult, error)
}

// ContextCache is the façade consumed by the orchestration layer.
type ContextCache interface {
	Get(ctx context.Context, key string, target *model.Target) (*model.Hit, bool)
	Set(ctx context.Context, key string, data []byte, meta model.Metadata, rules []model.Rule) error
	Invalidate(ctx context.Context, key string)
	Clear(ctx context.Context)
	Warmup(ctx context.Context, root string) error
	ScanAndCache(ctx context.Context, target *model.Target) (*model.Hit, error)
	Stats() model.StatsSnapshot
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) error
	OnEvent(fn func(model.Event))
	io.Closer
}

type Cache struct {
	cfg      *config.Cache
	logger   *slog.Logger
	clock    clock.Clock
	analyzer Analyzer

	db        *store.Store
	durable   *persist.Store // nil when persistence is disabled
	rules     *invalidation.Engine
	watcher   watch.Watcher
	matcher   *similarity.Matcher // nil when similarity is disabled
	evict     evictor.Evictor
	tracker   *stats.Tracker
	sweep     *sweeper.Worker
	telemeter telemetry.Logger

	locks     *keyLocks
	listeners listeners
	cls       context.CancelFunc
}

// Option tweaks construction. The zero set of options is production
// configuration.
type Option func(*Cache)

// WithClock substitutes the time source; tests advance a mock clock instead
// of sleeping through TTLs.
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) { c.clock = clk }
}

// New builds the engine, rehydrates it from durable storage and starts the
// maintenance sweep. The analyzer may be nil when ScanAndCache is unused.
func New(ctx context.Context, cfg *config.Cache, logger *slog.Logger, analyzer Analyzer, opts ...Option) (*Cache, error) {
	cfg.AdjustConfig()
	ctx, cancel := context.WithCancel(ctx)

	watcher, err := watch.NewNotifier(logger)
	if err != nil {
		cancel()
		return nil, err
	}
	c := &Cache{
		cfg:      cfg,
		logger:   logger,
		clock:    clock.New(),
		analyzer: analyzer,
		watcher:  watcher,
		locks:    newKeyLocks(),
		cls:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.db = store.New(c.clock)
	c.tracker = stats.NewTracker(c.clock)
	c.rules = invalidation.New(watcher, c.ruleInvalidate, c.emitError, logger)

	if cfg.Similarity.Enabled() {
		c.matcher, err = similarity.NewMatcher(cfg.Similarity, c.clock, logger)
		if err != nil {
			cancel()
			_ = watcher.Close()
			return nil, err
		}
	}

	if cfg.Persistence.Enabled() {
		c.durable, err = persist.New(cfg.Persistence, c.clock)
		if err != nil {
			cancel()
			_ = watcher.Close()
			return nil, err
		}
		if err := c.rehydrate(ctx); err != nil {
			cancel()
			_ = watcher.Close()
			return nil, err
		}
	}

	c.evict = evictor.New(cfg.Memory, c.db, c.evictionRemove, logger)
	c.sweep = sweeper.New(ctx, cfg.Sweep, c.db, c.clock, c.expire, c.flushLearning, logger)
	c.telemeter = telemetry.New(ctx, cfg.Telemetry, logger, c.tracker, c.db)

	return c, nil
}

// Get returns the payload for key, or a similarity hit for the target when
// the exact key misses and a comparable entry scores above the admission
// threshold. Similarity hits come back adapted and marked as such.
func (c *Cache) Get(ctx context.Context, key string, target *model.Target) (*model.Hit, bool) {
	start := c.clock.Now()
	defer func() { c.tracker.ObserveResponse(c.clock.Since(start)) }()

	c.locks.lock(key)
	entry, ok := c.db.Get(key)
	c.locks.unlock(key)

	if ok {
		c.tracker.RecordExactHit(key)
		return &model.Hit{Key: key, Data: entry.Data}, true
	}

	if target != nil && c.matcher != nil {
		if hit, ok := c.similarityGet(target); ok {
			return hit, true
		}
	}

	c.tracker.RecordMiss(key)
	return nil, false
}

func (c *Cache) similarityGet(target *model.Target) (*model.Hit, bool) {
	snapshot := c.db.Snapshot()
	candidates := snapshot[:0]
	for _, e := range snapshot {
		if hasTag(e.Metadata.Tags, model.TagAnalysis) {
			candidates = append(candidates, e)
		}
	}

	match, ok := c.matcher.Match(target, candidates)
	if !ok {
		return nil, false
	}

	c.db.Touch(match.Entry.Key)
	c.tracker.RecordSimilarityHit(match.Entry.Key)

	data := similarity.Adapt(match.Entry.Data, match.Entry.Metadata.TargetPath, target.Path, match.Score)
	return &model.Hit{
		Key:        match.Entry.Key,
		Data:       data,
		Adapted:    true,
		Similarity: match.Score,
	}, true
}

// Set stores a new entry under key, replacing any prior entry after tearing
// its watches down. Durability and watch setup degrade to error events; the
// in-memory write always completes.
func (c *Cache) Set(ctx context.Context, key string, data []byte, meta model.Metadata, rules []model.Rule) error {
	if key == "" {
		return errEmptyKey
	}

	c.locks.lock(key)
	now := c.clock.Now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.AccessCount = 0
	meta.LastAccessedAt = time.Time{}

	entry := model.NewEntry(key, data, meta, rules)
	entry.ExpiresAt = invalidation.Deadline(meta.CreatedAt, rules, c.cfg.Memory.DefaultTTL)

	c.rules.Detach(key)
	c.db.Set(entry)
	c.rules.Attach(entry)

	if c.durable != nil {
		if err := c.durable.Persist(ctx, entry); err != nil {
			c.emitError("persist", key, err.Error())
		}
	}
	c.tracker.RecordSet(key, entry.Metadata.Tags, entry.Weight())
	c.locks.unlock(key)

	// Ceilings are checked outside the key lock: an eviction pass may pick
	// any entry, this one included.
	if evicted := c.evict.Check(ctx); evicted > 0 {
		c.tracker.RecordEvictions(evicted)
		c.emitEvicted(evicted)
	}
	return nil
}

// Invalidate removes the entry and synchronously tears down its watches.
// A no-op for absent keys, idempotent for repeated calls.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.locks.lock(key)
	defer c.locks.unlock(key)
	c.removeEntry(ctx, key, "invalidate")
}

// ruleInvalidate is the watch-callback path. It sequences behind any
// in-flight write for the key via the key lock.
func (c *Cache) ruleInvalidate(key string) {
	c.locks.lock(key)
	defer c.locks.unlock(key)
	c.removeEntry(context.Background(), key, "rule")
}

// expire is the sweep path; it re-checks expiry under the key lock.
func (c *Cache) expire(ctx context.Context, key string) bool {
	c.locks.lock(key)
	defer c.locks.unlock(key)

	if !c.db.IsExpired(key) {
		return false
	}
	if !c.removeEntry(ctx, key, "sweep") {
		return false
	}
	c.emitExpired(key)
	return true
}

// evictionRemove is the evictor's removal callback. It runs outside any key
// lock (see Set) and reports the freed payload bytes.
func (c *Cache) evictionRemove(ctx context.Context, key string) (int64, bool) {
	c.locks.lock(key)
	defer c.locks.unlock(key)

	removed, ok := c.db.Delete(key)
	if !ok {
		return 0, false
	}
	c.rules.Detach(key)
	if c.durable != nil {
		if err := c.durable.Remove(ctx, key); err != nil {
			c.emitError("evict_remove", key, err.Error())
		}
	}
	return removed.Weight(), true
}

// removeEntry is the shared removal path: watches first, then the store,
// then the lagging durable mirror.
func (c *Cache) removeEntry(ctx context.Context, key, op string) bool {
	c.rules.Detach(key)
	removed, ok := c.db.Delete(key)
	if !ok {
		return false
	}

	if c.matcher != nil && removed.Metadata.TargetPath != "" {
		c.matcher.Forget(removed.Metadata.TargetPath)
	}
	if c.durable != nil {
		if err := c.durable.Remove(ctx, key); err != nil {
			c.emitError("remove", key, err.Error())
		}
	}
	c.tracker.RecordInvalidate(key)
	c.emitInvalidated(op, key)
	return true
}

// Clear removes every entry, tears down all watches and flushes learning
// statistics.
func (c *Cache) Clear(ctx context.Context) {
	c.rules.DetachAll()
	c.db.Clear()

	if c.durable != nil {
		if err := c.durable.Clear(ctx); err != nil {
			c.emitError("clear", "", err.Error())
		}
	}
	c.flushLearning(ctx)
}

func (c *Cache) Stats() model.StatsSnapshot {
	return c.tracker.Snapshot(c.db.Len(), c.db.Mem())
}

func (c *Cache) flushLearning(ctx context.Context) {
	if c.durable == nil {
		return
	}
	if err := c.durable.PersistLearning(ctx, c.tracker.Learning()); err != nil {
		c.emitError("persist_learning", "", err.Error())
	}
}

// rehydrate loads every non-expired durable record into the store and
// rewires its invalidation rules, then restores the learning table.
func (c *Cache) rehydrate(ctx context.Context) error {
	entries, err := c.durable.Load(ctx)
	if err != nil {
		return err
	}
	for i := range entries {
		e := entries[i]
		c.db.Set(&e)
		c.rules.Attach(&e)
	}

	learning, err := c.durable.LoadLearning(ctx)
	if err != nil {
		c.emitError("load_learning", "", err.Error())
		return nil
	}
	if len(learning) > 0 {
		c.tracker.ImportLearning(learning)
	}
	return nil
}

// Close stops background work, closes every outstanding watch and flushes
// learning statistics.
func (c *Cache) Close() error {
	c.cls()
	_ = c.sweep.Close()
	_ = c.telemeter.Close()
	c.rules.DetachAll()
	c.flushLearning(context.Background())
	return c.watcher.Close()
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
