package contextcache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/projectlens/go-context-cache/model"
)

const warmupKeyPrefix = "warmup:"

// Warmup eagerly loads files under root matching the configured preload
// globs, so first use of known-important inputs pays no read latency.
// The learning table orders the work: file names whose tag combinations
// were produced most often are loaded first.
func (c *Cache) Warmup(ctx context.Context, root string) error {
	if !c.cfg.Warmup.Enabled() {
		return nil
	}

	globs := make([]glob.Glob, 0, len(c.cfg.Warmup.Patterns))
	for _, p := range c.cfg.Warmup.Patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return fmt.Errorf("compile warmup pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, g := range globs {
			if g.Match(rel) {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk warmup root %s: %w", root, err)
	}

	c.orderByLearning(paths)

	var loaded int
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if c.preload(ctx, path) {
			loaded++
		}
	}

	c.logger.Info("warmup finished", "root", root, "matched", len(paths), "loaded", loaded)
	return nil
}

// preload caches one file's contents keyed by its path, invalidated by
// changes to the file itself.
func (c *Cache) preload(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() > c.cfg.Warmup.MaxFileBytes {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.emitError("warmup", path, err.Error())
		return false
	}

	name := filepath.Base(path)
	meta := model.Metadata{
		TargetPath:   filepath.Dir(path),
		FilePatterns: []string{name},
		Tags:         []string{model.TagWarmup, name},
	}
	rules := []model.Rule{model.FileChangeRule(name)}
	return c.Set(ctx, warmupKeyPrefix+path, data, meta, rules) == nil
}

// orderByLearning sorts preload candidates by how often their file name was
// seen in past tag combinations, most used first. Unknown names keep their
// walk order at the end.
func (c *Cache) orderByLearning(paths []string) {
	usages := c.tracker.Learning()
	rank := make(map[string]int, len(usages))
	for i, u := range usages {
		for _, tag := range strings.Split(u.Tags, ",") {
			if _, ok := rank[tag]; !ok {
				rank[tag] = i
			}
		}
	}

	sort.SliceStable(paths, func(i, j int) bool {
		ri, iOK := rank[filepath.Base(paths[i])]
		rj, jOK := rank[filepath.Base(paths[j])]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		default:
			return false
		}
	})
}
