package model

import (
	"time"

	"github.com/google/uuid"
)

// Well-known tags the engine itself attaches. TagAnalysis marks entries
// produced by the analysis routine; only those participate in similarity
// matching. TagWarmup marks entries preloaded by Warmup.
const (
	TagAnalysis = "analysis"
	TagWarmup   = "warmup"
)

// Entry is one stored cache record: an opaque payload plus the structured
// metadata and invalidation rules attached to it at write time.
type Entry struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	Metadata  Metadata  `json:"metadata"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Rules     []Rule    `json:"rules,omitempty"`
}

// Metadata describes the analysis target an entry was produced for.
// AccessCount and LastAccessedAt are mutated only by successful reads.
type Metadata struct {
	TargetPath      string    `json:"target_path"`
	FilePatterns    []string  `json:"file_patterns,omitempty"`
	Dependencies    []string  `json:"dependencies,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	AccessCount     int64     `json:"access_count"`
	LastAccessedAt  time.Time `json:"last_accessed_at,omitzero"`
	SizeBytes       int64     `json:"size_bytes"`
	Tags            []string  `json:"tags,omitempty"`
	SimilarityScore float64   `json:"similarity_score,omitempty"`
}

func NewEntry(key string, data []byte, meta Metadata, rules []Rule) *Entry {
	meta.SizeBytes = int64(len(data))
	return &Entry{
		ID:       uuid.NewString(),
		Key:      key,
		Data:     data,
		Metadata: meta,
		Rules:    rules,
	}
}

// IsExpired reports whether the entry's deadline has passed. Entries without
// a deadline never expire.
func (e *Entry) IsExpired(now time.Time) bool {
	if e == nil || e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// Weight is the entry's contribution to the tracked memory size.
func (e *Entry) Weight() int64 {
	if e == nil {
		return 0
	}
	return e.Metadata.SizeBytes
}

// Touch records a successful read at the given moment.
func (e *Entry) Touch(now time.Time) {
	e.Metadata.AccessCount++
	e.Metadata.LastAccessedAt = now
}

// Hit is the result of a cache read. Adapted marks payloads returned through
// the similarity path after target rewriting; callers must be able to tell
// them apart from exact hits.
type Hit struct {
	Key        string  `json:"key"`
	Data       []byte  `json:"data"`
	Adapted    bool    `json:"adapted"`
	Similarity float64 `json:"similarity,omitempty"`
}

// AnalysisResult is what the external analysis routine hands back: the opaque
// payload plus whatever metadata the caller supplies alongside it.
type AnalysisResult struct {
	Data     []byte
	Metadata Metadata
}
