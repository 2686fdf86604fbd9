package store_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/projectlens/go-context-cache/internal/store"
	"github.com/projectlens/go-context-cache/model"
)

func entry(mock *clock.Mock, key string, data []byte, ttl time.Duration) *model.Entry {
	e := model.NewEntry(key, data, model.Metadata{CreatedAt: mock.Now()}, nil)
	if ttl > 0 {
		e.ExpiresAt = mock.Now().Add(ttl)
	}
	return e
}

func TestGetTouchesTheEntry(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)

	db.Set(entry(mock, "a", []byte("data"), 0))

	mock.Add(time.Second)
	got, ok := db.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("data"), got.Data)
	require.Equal(t, int64(1), got.Metadata.AccessCount)
	require.Equal(t, mock.Now(), got.Metadata.LastAccessedAt)

	_, ok = db.Get("missing")
	require.False(t, ok)
}

func TestGetTreatsExpiredAsMiss(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)

	db.Set(entry(mock, "a", []byte("data"), time.Second))

	_, ok := db.Get("a")
	require.True(t, ok)

	mock.Add(2 * time.Second)
	_, ok = db.Get("a")
	require.False(t, ok)
	require.True(t, db.IsExpired("a"))

	// Peek still sees the record until the sweep removes it.
	_, ok = db.Peek("a")
	require.True(t, ok)
}

func TestPeekDoesNotTouch(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)

	db.Set(entry(mock, "a", []byte("data"), 0))

	got, ok := db.Peek("a")
	require.True(t, ok)
	require.Equal(t, int64(0), got.Metadata.AccessCount)
	require.True(t, got.Metadata.LastAccessedAt.IsZero())
}

func TestSetReplaceAccounting(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)

	_, replaced := db.Set(entry(mock, "a", []byte("12345"), 0))
	require.False(t, replaced)
	require.Equal(t, int64(1), db.Len())
	require.Equal(t, int64(5), db.Mem())

	prior, replaced := db.Set(entry(mock, "a", []byte("123"), 0))
	require.True(t, replaced)
	require.Equal(t, []byte("12345"), prior.Data)
	require.Equal(t, int64(1), db.Len())
	require.Equal(t, int64(3), db.Mem())
}

func TestDeleteAccounting(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)

	db.Set(entry(mock, "a", []byte("12345"), 0))

	removed, ok := db.Delete("a")
	require.True(t, ok)
	require.Equal(t, []byte("12345"), removed.Data)
	require.Equal(t, int64(0), db.Len())
	require.Equal(t, int64(0), db.Mem())

	_, ok = db.Delete("a")
	require.False(t, ok)
}

func TestClearReturnsRemovedKeys(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)

	db.Set(entry(mock, "a", []byte("1"), 0))
	db.Set(entry(mock, "b", []byte("2"), 0))

	keys := db.Clear()
	require.ElementsMatch(t, []string{"a", "b"}, keys)
	require.Equal(t, int64(0), db.Len())
	require.Equal(t, int64(0), db.Mem())
}

func TestSnapshotExcludesExpired(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)

	db.Set(entry(mock, "live", []byte("1"), time.Hour))
	db.Set(entry(mock, "stale", []byte("2"), time.Second))

	mock.Add(2 * time.Second)

	snap := db.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "live", snap[0].Key)

	// Keys still lists the expired record for the sweep to find.
	require.ElementsMatch(t, []string{"live", "stale"}, db.Keys())
}

func TestEvictionCandidatesOrder(t *testing.T) {
	mock := clock.NewMock()
	db := store.New(mock)

	// Created in order: a, b, c. None read yet.
	for _, key := range []string{"a", "b", "c"} {
		db.Set(entry(mock, key, []byte("x"), 0))
		mock.Add(time.Second)
	}

	require.Equal(t, []string{"a", "b"}, db.EvictionCandidates(2))

	// Reading "a" makes it the most recently used.
	_, ok := db.Get("a")
	require.True(t, ok)

	require.Equal(t, []string{"b", "c", "a"}, db.EvictionCandidates(10))
}
