// Package persist mirrors in-memory entries to durable key-addressed byte
// storage so the cache can be rehydrated after a restart. It is always a
// lagging mirror: liveness is decided by the in-memory store alone.
package persist

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/xxh3"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/model"
)

const (
	entriesDir   = "entries"
	learningFile = "learning.json"
)

var errStorageFull = errors.New("durable storage ceiling reached")

// Store persists one record file per key plus one aggregate
// learning-statistics record under the configured root directory.
type Store struct {
	cfg   *config.PersistenceCfg
	clock clock.Clock
	usage atomic.Int64
}

func New(cfg *config.PersistenceCfg, clk clock.Clock) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(cfg.Dir, entriesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create durable storage root: %w", err)
	}
	return &Store{cfg: cfg, clock: clk}, nil
}

// Persist writes one entry record, overwriting any prior record for the
// key. Failures are returned for the caller to report as error events; the
// in-memory operation has already completed by then.
func (s *Store) Persist(ctx context.Context, entry *model.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", entry.Key, err)
	}

	path := s.recordPath(entry.Key)
	return s.withRetry(ctx, func() error {
		prior := fileSize(path)
		if s.cfg.SizeBytes > 0 && s.usage.Load()-prior+int64(len(data)) > s.cfg.SizeBytes {
			return errStorageFull
		}
		written, err := s.writeFile(path, data)
		if err != nil {
			return err
		}
		s.usage.Add(written - prior)
		return nil
	})
}

// Remove deletes the durable record. A no-op if absent.
func (s *Store) Remove(ctx context.Context, key string) error {
	path := s.recordPath(key)
	return s.withRetry(ctx, func() error {
		size := fileSize(path)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		s.usage.Add(-size)
		return nil
	})
}

// Load reads every durable record, returning the ones not yet expired.
// Unreadable or stale records are dropped and logged, never fatal.
func (s *Store) Load(ctx context.Context) ([]model.Entry, error) {
	dir := filepath.Join(s.cfg.Dir, entriesDir)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read durable storage root: %w", err)
	}

	now := s.clock.Now()
	var out []model.Entry
	var dropped int
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		path := filepath.Join(dir, f.Name())
		s.usage.Add(fileSize(path))

		data, err := s.readFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", f.Name()).Msg("skipping unreadable record")
			dropped++
			continue
		}
		var e model.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			log.Warn().Err(err).Str("file", f.Name()).Msg("skipping undecodable record")
			dropped++
			continue
		}
		if e.IsExpired(now) {
			s.usage.Add(-fileSize(path))
			_ = os.Remove(path)
			dropped++
			continue
		}
		out = append(out, e)
	}

	log.Info().
		Int("restored", len(out)).
		Int("dropped", dropped).
		Msg("durable store loaded")
	return out, nil
}

// PersistLearning writes the aggregate learning-statistics record.
func (s *Store) PersistLearning(ctx context.Context, usages []model.TagUsage) error {
	data, err := json.Marshal(usages)
	if err != nil {
		return fmt.Errorf("encode learning stats: %w", err)
	}
	path := filepath.Join(s.cfg.Dir, learningFile)
	return s.withRetry(ctx, func() error {
		_, err := s.writeFile(path, data)
		return err
	})
}

// LoadLearning reads the learning-statistics record; absence is not an
// error.
func (s *Store) LoadLearning(ctx context.Context) ([]model.TagUsage, error) {
	data, err := s.readFile(filepath.Join(s.cfg.Dir, learningFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read learning stats: %w", err)
	}
	var usages []model.TagUsage
	if err := json.Unmarshal(data, &usages); err != nil {
		return nil, fmt.Errorf("decode learning stats: %w", err)
	}
	return usages, nil
}

// Clear drops every record file. The learning aggregate survives; Clear
// resets stored entries, not what the engine has learned about usage.
func (s *Store) Clear(ctx context.Context) error {
	dir := filepath.Join(s.cfg.Dir, entriesDir)
	return s.withRetry(ctx, func() error {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		s.usage.Store(0)
		return os.MkdirAll(dir, 0o755)
	})
}

// Usage is the approximate durable footprint in bytes.
func (s *Store) Usage() int64 { return s.usage.Load() }

func (s *Store) recordPath(key string) string {
	name := fmt.Sprintf("%016x.json", xxh3.HashString(key))
	if s.cfg.Gzip {
		name += ".gz"
	}
	return filepath.Join(s.cfg.Dir, entriesDir, name)
}

// writeFile writes tmp-then-rename so readers never see partial records.
func (s *Store) writeFile(path string, data []byte) (written int64, err error) {
	if s.cfg.Gzip {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return 0, err
		}
		if err := gw.Close(); err != nil {
			return 0, err
		}
		data = buf.Bytes()
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return int64(len(data)), nil
}

func (s *Store) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if s.cfg.Gzip {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	}
	return io.ReadAll(r)
}

// withRetry bounds one durable operation by the configured timeout and
// retry budget. A failing write degrades to an error event upstream, never
// a hung process.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.IOTimeout)
	defer cancel()

	var err error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = op(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last: %w)", ctx.Err(), err)
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return err
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
