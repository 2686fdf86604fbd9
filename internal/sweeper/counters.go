package sweeper

import "sync/atomic"

type sweeperCounters struct {
	sweeps  atomic.Int64
	expired atomic.Int64
}

func newSweeperCounters() *sweeperCounters {
	return &sweeperCounters{}
}

func (c *sweeperCounters) snapshot() (sweeps, expired int64) {
	return c.sweeps.Load(), c.expired.Load()
}
