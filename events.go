package contextcache

import (
	"sync"

	"github.com/projectlens/go-context-cache/model"
)

// listeners fan engine events out to registered observers. Delivery is
// synchronous; listeners must not block.
type listeners struct {
	mu  sync.RWMutex
	fns []func(model.Event)
}

func (l *listeners) add(fn func(model.Event)) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *listeners) emit(ev model.Event) {
	l.mu.RLock()
	fns := l.fns
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// OnEvent registers an observer for error, eviction, invalidation and
// expiry events. Degraded-but-recovered conditions (a cache silently
// running memory-only, a rule without its watch) are visible here.
func (c *Cache) OnEvent(fn func(model.Event)) {
	c.listeners.add(fn)
}

func (c *Cache) emitError(op, key, msg string) {
	c.logger.Warn("degraded operation", "op", op, "key", key, "err", msg)
	c.listeners.emit(model.Event{
		Type:    model.EventError,
		Op:      op,
		Key:     key,
		Message: msg,
		At:      c.clock.Now(),
	})
}

func (c *Cache) emitInvalidated(op, key string) {
	c.listeners.emit(model.Event{
		Type: model.EventInvalidated,
		Op:   op,
		Key:  key,
		At:   c.clock.Now(),
	})
}

func (c *Cache) emitExpired(key string) {
	c.listeners.emit(model.Event{
		Type: model.EventExpired,
		Op:   "sweep",
		Key:  key,
		At:   c.clock.Now(),
	})
}

func (c *Cache) emitEvicted(count int64) {
	c.listeners.emit(model.Event{
		Type:  model.EventEvicted,
		Op:    "evict",
		Count: count,
		At:    c.clock.Now(),
	})
}
