package config

// Cache groups configuration of all engine subsystems.
// Optional subsystems are pointer sections and can be disabled by leaving them nil.
type Cache struct {
	Memory MemoryCfg `yaml:"memory"`

	// Persistence configures the durable store that mirrors in-memory
	// entries to disk so the cache survives restarts.
	// If nil, the cache runs memory-only.
	Persistence *PersistenceCfg `yaml:"persistence"`

	// Similarity configures signature-based admission: a read for a
	// different-but-comparable target may be served from an existing entry.
	// If nil, only exact-key lookups hit.
	Similarity *SimilarityCfg `yaml:"similarity"`

	// Warmup configures eager preloading of files matching glob patterns.
	// If nil, Warmup calls are no-ops.
	Warmup *WarmupCfg `yaml:"warmup"`

	// Sweep configures the periodic maintenance pass that expires stale
	// entries and flushes learning statistics.
	Sweep SweepCfg `yaml:"sweep"`

	// Telemetry configures periodic stats logging.
	// If nil, no background stats reports are emitted.
	Telemetry *TelemetryCfg `yaml:"telemetry"`
}
