// Package invalidation wires declarative entry rules to their trigger
// mechanisms and owns the watch lifetime of every entry.
package invalidation

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/projectlens/go-context-cache/internal/watch"
	"github.com/projectlens/go-context-cache/model"
)

// Engine attaches rules at write time and tears watches down exactly once
// when an entry is invalidated, evicted, or the store is cleared.
type Engine struct {
	mu      sync.Mutex
	watches map[string][]watch.Handle

	watcher    watch.Watcher
	invalidate func(key string)
	onError    func(op, key, msg string)
	logger     *slog.Logger
}

func New(
	watcher watch.Watcher,
	invalidate func(key string),
	onError func(op, key, msg string),
	logger *slog.Logger,
) *Engine {
	return &Engine{
		watches:    make(map[string][]watch.Handle),
		watcher:    watcher,
		invalidate: invalidate,
		onError:    onError,
		logger:     logger,
	}
}

// Deadline computes the expiry an entry gets at write time: the tightest
// time-based rule wins, the configured default TTL applies when no such
// rule is present, and zero means the entry never expires.
func Deadline(createdAt time.Time, rules []model.Rule, defaultTTL time.Duration) time.Time {
	maxAge := defaultTTL
	for _, r := range rules {
		if r.Kind != model.RuleTimeBased || r.MaxAge <= 0 {
			continue
		}
		if maxAge <= 0 || r.MaxAge < maxAge {
			maxAge = r.MaxAge
		}
	}
	if maxAge <= 0 {
		return time.Time{}
	}
	return createdAt.Add(maxAge)
}

// Attach registers a filesystem watch for every file-change and
// dependency-update rule of the entry. A failing watch setup degrades that
// rule alone and is reported as an error event.
func (e *Engine) Attach(entry *model.Entry) {
	key := entry.Key
	var handles []watch.Handle

	for _, r := range entry.Rules {
		if !r.IsWatched() {
			continue
		}
		for _, path := range resolve(entry.Metadata.TargetPath, r.Pattern) {
			h, err := e.watcher.Watch(path, func(string) { e.invalidate(key) })
			if err != nil {
				e.onError("watch", key, err.Error())
				continue
			}
			handles = append(handles, h)
		}
	}

	if len(handles) == 0 {
		return
	}

	e.mu.Lock()
	e.watches[key] = append(e.watches[key], handles...)
	e.mu.Unlock()
}

// Detach synchronously closes every watch held for the key. Calling it
// twice for the same key is a no-op the second time.
func (e *Engine) Detach(key string) {
	e.mu.Lock()
	handles := e.watches[key]
	delete(e.watches, key)
	e.mu.Unlock()

	for _, h := range handles {
		_ = h.Close()
	}
}

// DetachAll tears down the watches of every entry. Used by Clear and Close.
func (e *Engine) DetachAll() {
	e.mu.Lock()
	all := e.watches
	e.watches = make(map[string][]watch.Handle)
	e.mu.Unlock()

	for _, handles := range all {
		for _, h := range handles {
			_ = h.Close()
		}
	}
}

// Watched reports how many keys currently hold active watches.
func (e *Engine) Watched() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.watches)
}

// resolve expands a rule pattern against the entry's target path. Glob
// patterns that match nothing fall back to the pattern's directory so
// later-created files are still observed through parent-dir events.
func resolve(base, pattern string) []string {
	if pattern == "" {
		return nil
	}
	p := pattern
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}

	if !strings.ContainsAny(p, "*?[") {
		return []string{p}
	}

	matches, err := filepath.Glob(p)
	if err != nil || len(matches) == 0 {
		return []string{filepath.Dir(p)}
	}
	return matches
}
