package evictor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/internal/store"
	"github.com/projectlens/go-context-cache/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fill(mock *clock.Mock, db *store.Store, n, size int) {
	for i := 0; i < n; i++ {
		mock.Add(time.Second)
		e := model.NewEntry(
			fmt.Sprintf("key-%d", i),
			make([]byte, size),
			model.Metadata{CreatedAt: mock.Now()},
			nil,
		)
		db.Set(e)
	}
}

func storeRemove(db *store.Store) func(ctx context.Context, key string) (int64, bool) {
	return func(_ context.Context, key string) (int64, bool) {
		removed, ok := db.Delete(key)
		if !ok {
			return 0, false
		}
		return removed.Weight(), true
	}
}

func TestNoCeilingsMeansNoOp(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)
	fill(mock, db, 5, 10)

	ev := New(config.MemoryCfg{}, db, storeRemove(db), discard())
	require.IsType(t, &NoOpEvictor{}, ev)
	require.Equal(t, int64(0), ev.Check(context.Background()))
	require.Equal(t, int64(5), db.Len())
}

func TestCheckWithinCeilingRemovesNothing(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)
	fill(mock, db, 5, 10)

	ev := New(config.MemoryCfg{MaxEntries: 10}, db, storeRemove(db), discard())
	require.Equal(t, int64(0), ev.Check(context.Background()))
	require.Equal(t, int64(5), db.Len())
}

func TestCheckEvictsOldestFirst(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)
	fill(mock, db, 11, 10)

	ev := New(config.MemoryCfg{MaxEntries: 10}, db, storeRemove(db), discard())

	// 11 live entries, one pass of ceil(11*0.1)=2 brings it to 9.
	require.Equal(t, int64(2), ev.Check(context.Background()))
	require.Equal(t, int64(9), db.Len())

	for _, victim := range []string{"key-0", "key-1"} {
		_, ok := db.Peek(victim)
		require.False(t, ok, "expected %s evicted", victim)
	}
	_, ok := db.Peek("key-2")
	require.True(t, ok)

	passes, items, bytes := ev.Metrics()
	require.Equal(t, int64(1), passes)
	require.Equal(t, int64(2), items)
	require.Equal(t, int64(20), bytes)
}

func TestCheckLoopsUntilUnderMemoryCeiling(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)
	fill(mock, db, 10, 100)

	ev := New(config.MemoryCfg{SizeBytes: 250}, db, storeRemove(db), discard())

	evicted := ev.Check(context.Background())
	require.Equal(t, int64(8), evicted)
	require.LessOrEqual(t, db.Mem(), int64(250))
}

func TestCheckStopsWhenRemoveFails(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)
	fill(mock, db, 5, 10)

	ev := New(config.MemoryCfg{MaxEntries: 1}, db, func(context.Context, string) (int64, bool) {
		return 0, false
	}, discard())

	require.Equal(t, int64(0), ev.Check(context.Background()))
	require.Equal(t, int64(5), db.Len())
}
