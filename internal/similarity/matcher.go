// Package similarity amortizes the analysis cost across targets that are
// structurally comparable without being byte-identical. It is a heuristic
// admission policy: a similarity hit is always marked as adapted and never
// promoted silently as an exact hit, and callers accept the staleness risk
// of serving one target's analysis to another.
package similarity

import (
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/model"
)

// Score weights per term. Each term contributes only when both sides have
// data for it; the sum is normalized by the contributing weight.
const (
	depsWeight     = 0.4
	patternsWeight = 0.3
	markersWeight  = 0.3
)

// Confidence weights combining the score with decay and boost factors.
const (
	scoreWeight = 0.6
	ageWeight   = 0.2
	freqWeight  = 0.1
	sizeWeight  = 0.1
)

// accessBoostCap caps the access-frequency contribution: entries read this
// often count as fully warm.
const accessBoostCap = 10

// defaultMarkers are framework and tooling dependencies whose presence
// identifies a technology stack.
var defaultMarkers = []string{
	"react", "vue", "angular", "svelte", "next",
	"express", "fastify", "nest",
	"typescript", "jest", "vitest", "mocha",
	"webpack", "vite", "eslint", "prettier",
	"django", "flask", "fastapi", "pytest",
	"gin", "echo", "cobra", "chi",
	"spring-boot", "rails",
}

// Match is a similarity hit candidate above threshold and confidence floor.
type Match struct {
	Entry      model.Entry
	Score      float64
	Confidence float64
}

type Matcher struct {
	cfg     *config.SimilarityCfg
	builder *Builder
	clock   clock.Clock
	markers map[string]struct{}
	logger  *slog.Logger
}

func NewMatcher(cfg *config.SimilarityCfg, clk clock.Clock, logger *slog.Logger) (*Matcher, error) {
	builder, err := NewBuilder(cfg.SignatureCacheSize)
	if err != nil {
		return nil, err
	}

	markerList := cfg.Markers
	if len(markerList) == 0 {
		markerList = defaultMarkers
	}
	markers := make(map[string]struct{}, len(markerList))
	for _, m := range markerList {
		markers[m] = struct{}{}
	}

	return &Matcher{
		cfg:     cfg,
		builder: builder,
		clock:   clk,
		markers: markers,
		logger:  logger,
	}, nil
}

// Forget drops the memoized filesystem observation for a target path.
func (m *Matcher) Forget(path string) {
	m.builder.Forget(path)
}

// Match scores the target's signature against every candidate entry and
// returns the best one above the admission threshold and confidence floor.
func (m *Matcher) Match(target *model.Target, candidates []model.Entry) (*Match, bool) {
	sig := m.builder.Build(target)

	var best *Match
	for _, e := range candidates {
		score := m.Score(sig, &e.Metadata)
		if score < m.cfg.Threshold {
			continue
		}
		conf := m.confidence(score, &e)
		if conf < m.cfg.ConfidenceFloor {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Entry: e, Score: score, Confidence: conf}
		}
	}

	if best == nil {
		return nil, false
	}
	m.logger.Debug("similarity hit",
		"key", best.Entry.Key,
		"score", best.Score,
		"confidence", best.Confidence,
	)
	return best, true
}

// Score computes the weighted structural similarity between a signature and
// an entry's metadata, in [0,1].
func (m *Matcher) Score(sig *model.Signature, meta *model.Metadata) float64 {
	entryDeps := toSet(meta.Dependencies)
	entryPatterns := toSet(meta.FilePatterns)

	var sum, weight float64

	if len(sig.Dependencies) > 0 && len(entryDeps) > 0 {
		sum += depsWeight * jaccard(sig.Dependencies, entryDeps)
		weight += depsWeight
	}
	if len(sig.FilePatterns) > 0 && len(entryPatterns) > 0 {
		sum += patternsWeight * jaccard(sig.FilePatterns, entryPatterns)
		weight += patternsWeight
	}

	// Markers measure presence of a shared technology stack, so the term
	// uses the overlap coefficient: a stack fully contained in a larger
	// one still counts as a full match.
	sigMarkers := m.markersOf(sig.Dependencies)
	entryMarkers := m.markersOf(entryDeps)
	if len(sigMarkers) > 0 && len(entryMarkers) > 0 {
		sum += markersWeight * overlap(sigMarkers, entryMarkers)
		weight += markersWeight
	}

	if weight == 0 {
		return 0
	}
	return sum / weight
}

// confidence folds the score together with age decay, access frequency and
// payload validity.
func (m *Matcher) confidence(score float64, e *model.Entry) float64 {
	age := 1.0
	if !e.ExpiresAt.IsZero() {
		total := e.ExpiresAt.Sub(e.Metadata.CreatedAt)
		left := e.ExpiresAt.Sub(m.clock.Now())
		if total > 0 {
			age = float64(left) / float64(total)
			if age < 0 {
				age = 0
			}
		}
	}

	freq := float64(e.Metadata.AccessCount) / accessBoostCap
	if freq > 1 {
		freq = 1
	}

	size := 0.0
	if len(e.Data) > 0 {
		size = 1.0
	}

	return scoreWeight*score + ageWeight*age + freqWeight*freq + sizeWeight*size
}

func (m *Matcher) markersOf(deps map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for d := range deps {
		if _, ok := m.markers[d]; ok {
			out[d] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) float64 {
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	if smaller == 0 {
		return 0
	}
	var inter int
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(smaller)
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	var inter int
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
