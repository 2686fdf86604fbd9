package evictor

import "context"

// NoOpEvictor is used when no ceiling is configured. It evicts nothing and
// reports zero metrics.
type NoOpEvictor struct{}

// Check does nothing and reports zero evictions.
func (NoOpEvictor) Check(ctx context.Context) int64 {
	return 0
}

// Metrics always returns zero values.
func (NoOpEvictor) Metrics() (passes, evictedItems, evictedBytes int64) {
	return 0, 0, 0
}
