package store

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/projectlens/go-context-cache/model"
)

// Store is the canonical in-memory entry table and the single source of
// truth for entry liveness. The durable store is always a lagging mirror.
type Store struct {
	mu    sync.RWMutex
	items map[string]*model.Entry
	len   atomic.Int64
	mem   atomic.Int64
	clock clock.Clock
}

func New(clk clock.Clock) *Store {
	return &Store{
		items: make(map[string]*model.Entry),
		clock: clk,
	}
}

// Get returns a copy of the live entry and records the access. Expired
// entries are misses even before the sweep physically removes them.
func (s *Store) Get(key string) (model.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || e.IsExpired(s.clock.Now()) {
		return model.Entry{}, false
	}
	e.Touch(s.clock.Now())
	return *e, true
}

// Peek returns a copy of the entry without access bookkeeping and without
// the expiry check. Used by persistence and export paths.
func (s *Store) Peek(key string) (model.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok {
		return model.Entry{}, false
	}
	return *e, true
}

// Touch records a successful read against an entry hit through the
// similarity path.
func (s *Store) Touch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok {
		e.Touch(s.clock.Now())
	}
}

// Set stores the entry, replacing any prior record under the same key.
// It returns a copy of the replaced entry so the caller can tear down its
// watches and durable record.
func (s *Store) Set(entry *model.Entry) (prior model.Entry, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items[entry.Key]; ok {
		prior, replaced = *old, true
		s.mem.Add(-old.Weight())
		s.len.Add(-1)
	}

	s.items[entry.Key] = entry
	s.mem.Add(entry.Weight())
	s.len.Add(1)
	return prior, replaced
}

// Delete removes the entry if present. A no-op for absent keys.
func (s *Store) Delete(key string) (removed model.Entry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.items[key]
	if !found {
		return model.Entry{}, false
	}
	delete(s.items, key)
	s.mem.Add(-e.Weight())
	s.len.Add(-1)
	return *e, true
}

// Clear removes every entry and returns the removed keys so the caller can
// tear down all watches.
func (s *Store) Clear() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.items = make(map[string]*model.Entry)
	s.mem.Store(0)
	s.len.Store(0)
	return keys
}

// Keys returns a snapshot of all live keys, expired ones included.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}

// IsExpired reports whether the entry exists and its deadline has passed.
func (s *Store) IsExpired(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	return ok && e.IsExpired(s.clock.Now())
}

// Snapshot returns copies of every live, non-expired entry. The similarity
// matcher and the export path iterate over it without holding the lock.
func (s *Store) Snapshot() []model.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	out := make([]model.Entry, 0, len(s.items))
	for _, e := range s.items {
		if e.IsExpired(now) {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// EvictionCandidates returns up to n keys ordered by last access, least
// recently accessed first. Entries never read sort by creation time.
func (s *Store) EvictionCandidates(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type cand struct {
		key  string
		used int64
	}
	cands := make([]cand, 0, len(s.items))
	for k, e := range s.items {
		used := e.Metadata.LastAccessedAt.UnixNano()
		if e.Metadata.LastAccessedAt.IsZero() {
			used = e.Metadata.CreatedAt.UnixNano()
		}
		cands = append(cands, cand{key: k, used: used})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].used < cands[j].used })

	if n > len(cands) {
		n = len(cands)
	}
	keys := make([]string, 0, n)
	for _, c := range cands[:n] {
		keys = append(keys, c.key)
	}
	return keys
}

func (s *Store) Len() int64 { return s.len.Load() }
func (s *Store) Mem() int64 { return s.mem.Load() }
