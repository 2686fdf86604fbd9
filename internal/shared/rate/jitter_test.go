package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJitterDeliversPacedTicks(t *testing.T) {
	j := NewJitter(t.Context(), 100)

	start := time.Now()
	for i := 0; i < 10; i++ {
		j.Take()
	}

	// 100 per second means roughly 10ms apart; the burst buffer may absorb
	// the first few takes, so only an upper bound is stable.
	require.Less(t, time.Since(start), time.Second)
}

func TestJitterChanClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := NewJitter(ctx, 10)

	select {
	case <-j.Chan():
	case <-time.After(time.Second):
		t.Fatal("expected a paced tick")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-j.Chan():
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
