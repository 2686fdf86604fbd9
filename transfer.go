package contextcache

import (
	"context"
	"io"

	"github.com/projectlens/go-context-cache/internal/persist"
)

// ErrIncompatibleVersion is returned by Import for documents produced by a
// different export format version.
var ErrIncompatibleVersion = persist.ErrIncompatibleVersion

// Export serializes the configuration, every live non-expired entry and the
// learning statistics as one versioned document.
func (c *Cache) Export(ctx context.Context, w io.Writer) error {
	doc := &persist.Document{
		Config:   c.cfg,
		Stats:    c.Stats(),
		Entries:  c.db.Snapshot(),
		Learning: c.tracker.Learning(),
	}
	gzipOn := c.cfg.Persistence.Enabled() && c.cfg.Persistence.Gzip
	return persist.WriteDocument(w, doc, gzipOn, c.clock.Now())
}

// Import loads every non-expired entry of a previously exported document,
// rewiring invalidation rules and mirroring to durable storage. A document
// with a different format version fails with
// persist.ErrIncompatibleVersion before anything is modified.
func (c *Cache) Import(ctx context.Context, r io.Reader) error {
	doc, err := persist.ReadDocument(r)
	if err != nil {
		return err
	}

	if len(doc.Learning) > 0 {
		c.tracker.ImportLearning(doc.Learning)
	}

	now := c.clock.Now()
	for i := range doc.Entries {
		e := doc.Entries[i]
		if e.IsExpired(now) {
			continue
		}

		c.locks.lock(e.Key)
		c.rules.Detach(e.Key)
		c.db.Set(&e)
		c.rules.Attach(&e)
		if c.durable != nil {
			if err := c.durable.Persist(ctx, &e); err != nil {
				c.emitError("persist", e.Key, err.Error())
			}
		}
		c.locks.unlock(e.Key)
	}

	if evicted := c.evict.Check(ctx); evicted > 0 {
		c.tracker.RecordEvictions(evicted)
		c.emitEvicted(evicted)
	}
	return nil
}
