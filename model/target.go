package model

// Target identifies an analysis target: a directory on disk plus the
// dependency and file-pattern sets the caller already knows about. Empty
// slices are fine; the signature builder fills in what it can observe from
// the filesystem.
type Target struct {
	Path         string   `json:"path"`
	Dependencies []string `json:"dependencies,omitempty"`
	FilePatterns []string `json:"file_patterns,omitempty"`
}

// Signature is the derived comparison key for similarity matching. It is
// built on demand from a Target and discarded after the comparison; it is
// never persisted.
type Signature struct {
	Dependencies      map[string]struct{}
	FilePatterns      map[string]struct{}
	ConfigFingerprint uint64
	StructureHash     uint64
}

func NewSignature() *Signature {
	return &Signature{
		Dependencies: make(map[string]struct{}),
		FilePatterns: make(map[string]struct{}),
	}
}
