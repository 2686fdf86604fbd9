package stats

import "sync/atomic"

type counters struct {
	requests       atomic.Int64
	exactHits      atomic.Int64
	similarityHits atomic.Int64
	misses         atomic.Int64
	evictions      atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() (requests, exactHits, similarityHits, misses, evictions int64) {
	return c.requests.Load(), c.exactHits.Load(), c.similarityHits.Load(), c.misses.Load(), c.evictions.Load()
}
