package config

type SimilarityCfg struct {
	// Threshold is the admission score below which a candidate entry is
	// not considered comparable. Typical range: [0.7..0.95].
	Threshold float64 `yaml:"threshold"`

	// ConfidenceFloor is the minimum combined confidence (score plus
	// age/frequency/size factors) a candidate must reach.
	// It is derived during initialization when left zero.
	ConfidenceFloor float64 `yaml:"confidence_floor"`

	// Markers lists technology-stack marker dependencies. Overlap on
	// markers contributes to the similarity score; an empty list falls
	// back to the built-in set.
	Markers []string `yaml:"markers"`

	// SignatureCacheSize bounds the per-path signature memoization cache.
	SignatureCacheSize int `yaml:"signature_cache_size"`
}

func (cfg *SimilarityCfg) Enabled() bool {
	return cfg != nil
}

type WarmupCfg struct {
	// Patterns are glob patterns (relative to the warmup root) whose
	// matches are eagerly loaded into the cache.
	// Example: ["**/package.json", "**/go.mod"].
	Patterns []string `yaml:"patterns"`

	// MaxFileBytes skips preloading files larger than this. Zero applies
	// the built-in limit.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

func (cfg *WarmupCfg) Enabled() bool {
	return cfg != nil
}
