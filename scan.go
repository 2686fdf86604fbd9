package contextcache

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/projectlens/go-context-cache/internal/similarity"
	"github.com/projectlens/go-context-cache/model"
)

var errNoAnalyzer = errors.New("no analyzer configured")

const scanKeyPrefix = "scan:"

// ScanKey is the cache key under which a target's analysis result lives.
func ScanKey(path string) string {
	return scanKeyPrefix + filepath.Clean(path)
}

// ScanAndCache returns the analysis result for the target, served from the
// cache when possible: exact key first, then the similarity path, and only
// on a full miss the external analysis routine. Analyzer errors propagate
// unchanged; they are never masked as a miss or a stale hit.
func (c *Cache) ScanAndCache(ctx context.Context, target *model.Target) (*model.Hit, error) {
	if c.analyzer == nil {
		return nil, errNoAnalyzer
	}

	start := c.clock.Now()
	key := ScanKey(target.Path)

	if hit, ok := c.Get(ctx, key, target); ok {
		return hit, nil
	}

	res, err := c.analyzer.Analyze(ctx, target)
	if err != nil {
		return nil, err
	}

	meta := res.Metadata
	if meta.TargetPath == "" {
		meta.TargetPath = target.Path
	}
	if len(meta.Dependencies) == 0 {
		meta.Dependencies = target.Dependencies
	}
	if len(meta.FilePatterns) == 0 {
		meta.FilePatterns = target.FilePatterns
	}
	if !hasTag(meta.Tags, model.TagAnalysis) {
		meta.Tags = append(meta.Tags, model.TagAnalysis)
	}

	if err := c.Set(ctx, key, res.Data, meta, scanRules(meta)); err != nil {
		return nil, err
	}

	c.tracker.ObserveResponse(c.clock.Since(start))
	return &model.Hit{Key: key, Data: res.Data}, nil
}

// scanRules derives the invalidation rules of an analysis entry from its
// observed file patterns: dependency manifests get dependency-update
// intent, everything else plain file-change. Expiry rides the configured
// default TTL applied at write time.
func scanRules(meta model.Metadata) []model.Rule {
	rules := make([]model.Rule, 0, len(meta.FilePatterns))
	for _, p := range meta.FilePatterns {
		if similarity.IsManifest(filepath.Base(p)) {
			rules = append(rules, model.DependencyUpdateRule(p))
			continue
		}
		rules = append(rules, model.FileChangeRule(p))
	}
	return rules
}
