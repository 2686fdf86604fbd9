package persist

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/model"
)

func testStore(t *testing.T, mock *clock.Mock, mutate func(*config.PersistenceCfg)) *Store {
	t.Helper()
	cfg := &config.PersistenceCfg{
		Dir:       t.TempDir(),
		IOTimeout: 2 * time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(cfg, mock)
	require.NoError(t, err)
	return s
}

func testEntry(mock *clock.Mock, key string, data []byte, ttl time.Duration) *model.Entry {
	e := model.NewEntry(key, data, model.Metadata{CreatedAt: mock.Now()}, nil)
	if ttl > 0 {
		e.ExpiresAt = mock.Now().Add(ttl)
	}
	return e
}

func TestPersistLoadRoundTrip(t *testing.T) {
	mock := clock.NewMock()
	s := testStore(t, mock, nil)

	want := testEntry(mock, "proj-a", []byte(`{"files":42}`), time.Hour)
	require.NoError(t, s.Persist(context.Background(), want))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, want.Key, loaded[0].Key)
	require.Equal(t, want.Data, loaded[0].Data)
}

func TestPersistGzipRoundTrip(t *testing.T) {
	mock := clock.NewMock()
	s := testStore(t, mock, func(cfg *config.PersistenceCfg) { cfg.Gzip = true })

	payload := bytes.Repeat([]byte(`{"k":"v"}`), 100)
	require.NoError(t, s.Persist(context.Background(), testEntry(mock, "big", payload, time.Hour)))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, payload, loaded[0].Data)
	require.Less(t, s.Usage(), int64(len(payload)), "gzip record smaller than payload")
}

func TestLoadDropsExpiredRecords(t *testing.T) {
	mock := clock.NewMock()
	s := testStore(t, mock, nil)

	require.NoError(t, s.Persist(context.Background(), testEntry(mock, "stale", []byte("x"), time.Second)))
	require.NoError(t, s.Persist(context.Background(), testEntry(mock, "live", []byte("y"), time.Hour)))

	mock.Add(2 * time.Second)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "live", loaded[0].Key)

	// The stale record file was removed, a reload sees only the live one.
	loaded, err = s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestRemoveIsIdempotent(t *testing.T) {
	mock := clock.NewMock()
	s := testStore(t, mock, nil)

	require.NoError(t, s.Persist(context.Background(), testEntry(mock, "a", []byte("x"), 0)))
	require.NoError(t, s.Remove(context.Background(), "a"))
	require.NoError(t, s.Remove(context.Background(), "a"))
	require.NoError(t, s.Remove(context.Background(), "never-existed"))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, loaded)
	require.Equal(t, int64(0), s.Usage())
}

func TestPersistOverwritesPriorRecord(t *testing.T) {
	mock := clock.NewMock()
	s := testStore(t, mock, nil)

	require.NoError(t, s.Persist(context.Background(), testEntry(mock, "a", []byte("v1"), 0)))
	require.NoError(t, s.Persist(context.Background(), testEntry(mock, "a", []byte("v2"), 0)))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, []byte("v2"), loaded[0].Data)
}

func TestPersistEnforcesStorageCeiling(t *testing.T) {
	mock := clock.NewMock()
	s := testStore(t, mock, func(cfg *config.PersistenceCfg) { cfg.SizeBytes = 400 })

	small := testEntry(mock, "small", []byte("x"), 0)
	require.NoError(t, s.Persist(context.Background(), small))

	big := testEntry(mock, "big", bytes.Repeat([]byte("y"), 256), 0)
	err := s.Persist(context.Background(), big)
	require.ErrorIs(t, err, errStorageFull)

	// The prior record is untouched.
	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "small", loaded[0].Key)
}

func TestClearKeepsLearning(t *testing.T) {
	mock := clock.NewMock()
	s := testStore(t, mock, nil)

	require.NoError(t, s.Persist(context.Background(), testEntry(mock, "a", []byte("x"), 0)))
	require.NoError(t, s.PersistLearning(context.Background(), []model.TagUsage{{Tags: "node", Count: 3}}))

	require.NoError(t, s.Clear(context.Background()))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, loaded)

	learning, err := s.LoadLearning(context.Background())
	require.NoError(t, err)
	require.Len(t, learning, 1)
	require.Equal(t, "node", learning[0].Tags)
}

func TestLoadLearningAbsenceIsNotAnError(t *testing.T) {
	s := testStore(t, clock.NewMock(), nil)
	learning, err := s.LoadLearning(context.Background())
	require.NoError(t, err)
	require.Nil(t, learning)
}

func TestDocumentRoundTrip(t *testing.T) {
	mock := clock.NewMock()
	doc := &Document{
		Entries:  []model.Entry{*testEntry(mock, "a", []byte("x"), time.Hour)},
		Learning: []model.TagUsage{{Tags: "node", Count: 2}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDocument(&buf, doc, false, mock.Now()))

	got, err := ReadDocument(&buf)
	require.NoError(t, err)
	require.Equal(t, FormatVersion, got.Version)
	require.Len(t, got.Entries, 1)
	require.Equal(t, "a", got.Entries[0].Key)
	require.Len(t, got.Learning, 1)
}

func TestDocumentGzipDetection(t *testing.T) {
	mock := clock.NewMock()
	doc := &Document{Entries: []model.Entry{*testEntry(mock, "a", []byte("x"), 0)}}

	var buf bytes.Buffer
	require.NoError(t, WriteDocument(&buf, doc, true, mock.Now()))
	require.Equal(t, byte(0x1f), buf.Bytes()[0])

	got, err := ReadDocument(&buf)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
}

func TestReadDocumentRejectsForeignVersion(t *testing.T) {
	_, err := ReadDocument(strings.NewReader(`{"version":"2.0","entries":[]}`))
	require.ErrorIs(t, err, ErrIncompatibleVersion)
}
