package sweeper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/internal/store"
	"github.com/projectlens/go-context-cache/model"
)

func sweepCfg() config.SweepCfg {
	return config.SweepCfg{
		Interval:  time.Hour,
		BatchSize: 64,
		Rate:      1000,
	}
}

func testWorker(t *testing.T, mock *clock.Mock, db *store.Store, flushed *atomic.Int64) *Worker {
	t.Helper()
	expire := func(_ context.Context, key string) bool {
		if !db.IsExpired(key) {
			return false
		}
		_, ok := db.Delete(key)
		return ok
	}
	flush := func(context.Context) {
		if flushed != nil {
			flushed.Add(1)
		}
	}
	w := New(t.Context(), sweepCfg(), db, mock, expire, flush, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func addEntry(mock *clock.Mock, db *store.Store, key string, ttl time.Duration) {
	e := model.NewEntry(key, []byte("x"), model.Metadata{CreatedAt: mock.Now()}, nil)
	if ttl > 0 {
		e.ExpiresAt = mock.Now().Add(ttl)
	}
	db.Set(e)
}

func TestForceSweepRemovesExpiredEntries(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)
	var flushed atomic.Int64
	w := testWorker(t, mock, db, &flushed)

	for i := 0; i < 5; i++ {
		addEntry(mock, db, fmt.Sprintf("stale-%d", i), time.Second)
	}
	addEntry(mock, db, "live", time.Hour)
	addEntry(mock, db, "forever", 0)

	mock.Add(2 * time.Second)
	require.NoError(t, w.ForceSweep(time.Second))

	require.Eventually(t, func() bool { return db.Len() == 2 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return flushed.Load() > 0 }, 3*time.Second, 10*time.Millisecond)

	_, ok := db.Peek("live")
	require.True(t, ok)
	_, ok = db.Peek("forever")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		sweeps, expired := w.Metrics()
		return sweeps >= 1 && expired == 5
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSweepKeepsLiveEntries(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)
	w := testWorker(t, mock, db, nil)

	addEntry(mock, db, "a", time.Hour)
	addEntry(mock, db, "b", 0)

	require.NoError(t, w.ForceSweep(time.Second))
	require.Eventually(t, func() bool {
		sweeps, _ := w.Metrics()
		return sweeps >= 1
	}, 3*time.Second, 10*time.Millisecond)

	require.Equal(t, int64(2), db.Len())
}

func TestForceSweepAfterCloseTimesOut(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)
	w := testWorker(t, mock, db, nil)

	require.NoError(t, w.Close())

	// The worker is gone; the closed context path returns without error,
	// a second Close stays safe.
	require.NoError(t, w.ForceSweep(50*time.Millisecond))
	require.NoError(t, w.Close())
}
