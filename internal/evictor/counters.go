package evictor

import "sync/atomic"

type evictorCounters struct {
	passes       atomic.Int64
	evictedItems atomic.Int64
	evictedBytes atomic.Int64
}

func newEvictorCounters() *evictorCounters {
	return &evictorCounters{}
}

func (c *evictorCounters) snapshot() (passes, evictedItems, evictedBytes int64) {
	return c.passes.Load(), c.evictedItems.Load(), c.evictedBytes.Load()
}
