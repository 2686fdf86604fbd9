// Package stats records request outcomes, a bounded recent-activity log and
// the per-tag learning aggregates that bias warm-up ordering.
package stats

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/projectlens/go-context-cache/internal/shared/bytes"
	"github.com/projectlens/go-context-cache/model"
)

// activityRingSize bounds the recent-activity diagnostics log.
const activityRingSize = 100

type Tracker struct {
	counters *counters
	clock    clock.Clock

	mu        sync.Mutex
	ring      [activityRingSize]model.Activity
	ringLen   int
	ringPos   int
	respTotal time.Duration
	respCount int64
	learning  map[string]*model.TagUsage
}

func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{
		counters: newCounters(),
		clock:    clk,
		learning: make(map[string]*model.TagUsage),
	}
}

func (t *Tracker) RecordExactHit(key string) {
	t.counters.requests.Add(1)
	t.counters.exactHits.Add(1)
	t.record("get:hit", key)
}

func (t *Tracker) RecordSimilarityHit(key string) {
	t.counters.requests.Add(1)
	t.counters.similarityHits.Add(1)
	t.record("get:similarity", key)
}

func (t *Tracker) RecordMiss(key string) {
	t.counters.requests.Add(1)
	t.counters.misses.Add(1)
	t.record("get:miss", key)
}

func (t *Tracker) RecordInvalidate(key string) {
	t.record("invalidate", key)
}

func (t *Tracker) RecordEvictions(n int64) {
	t.counters.evictions.Add(n)
}

// RecordSet logs the write and folds the entry's tag combination into the
// learning table.
func (t *Tracker) RecordSet(key string, tags []string, size int64) {
	t.record("set", key)
	if len(tags) == 0 {
		return
	}

	combo := tagCombo(tags)
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.learning[combo]
	if !ok {
		u = &model.TagUsage{Tags: combo}
		t.learning[combo] = u
	}
	u.AvgSize = (u.AvgSize*float64(u.Count) + float64(size)) / float64(u.Count+1)
	u.Count++
	u.LastSeen = now
}

// ObserveResponse folds one operation duration into the running average.
func (t *Tracker) ObserveResponse(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.respTotal += d
	t.respCount++
}

// Learning returns the tag aggregates ordered by usage, most used first.
func (t *Tracker) Learning() []model.TagUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.TagUsage, 0, len(t.learning))
	for _, u := range t.learning {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// ImportLearning replaces the learning table, used when rehydrating from
// the durable store or an import document.
func (t *Tracker) ImportLearning(usages []model.TagUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.learning = make(map[string]*model.TagUsage, len(usages))
	for _, u := range usages {
		c := u
		t.learning[u.Tags] = &c
	}
}

// Snapshot captures the current counters together with the store's live
// entry count and tracked memory.
func (t *Tracker) Snapshot(entries, mem int64) model.StatsSnapshot {
	requests, exact, similar, misses, evictions := t.counters.snapshot()

	t.mu.Lock()
	var avg time.Duration
	if t.respCount > 0 {
		avg = t.respTotal / time.Duration(t.respCount)
	}
	recent := t.recentLocked()
	t.mu.Unlock()

	var hitRate float64
	if requests > 0 {
		hitRate = float64(exact+similar) / float64(requests)
	}

	return model.StatsSnapshot{
		Requests:       requests,
		ExactHits:      exact,
		SimilarityHits: similar,
		Misses:         misses,
		Evictions:      evictions,
		HitRate:        hitRate,
		AvgResponse:    avg,
		Entries:        entries,
		MemBytes:       mem,
		MemHuman:       bytes.FmtMem(uint64(mem)),
		Recent:         recent,
		Learning:       t.Learning(),
	}
}

func (t *Tracker) record(op, key string) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring[t.ringPos] = model.Activity{At: now, Op: op, Key: key}
	t.ringPos = (t.ringPos + 1) % activityRingSize
	if t.ringLen < activityRingSize {
		t.ringLen++
	}
}

// recentLocked returns the ring contents oldest first.
func (t *Tracker) recentLocked() []model.Activity {
	out := make([]model.Activity, 0, t.ringLen)
	start := t.ringPos - t.ringLen
	if start < 0 {
		start += activityRingSize
	}
	for i := 0; i < t.ringLen; i++ {
		out = append(out, t.ring[(start+i)%activityRingSize])
	}
	return out
}

func tagCombo(tags []string) string {
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
