package config

import "time"

type MemoryCfg struct {
	// SizeBytes is the memory ceiling for tracked payload bytes.
	// Exceeding it after a write triggers LRU eviction passes.
	SizeBytes int64 `yaml:"size"`

	// MaxEntries is the entry-count ceiling. Zero means unbounded.
	MaxEntries int64 `yaml:"max_entries"`

	// DefaultTTL applies to entries written without a time-based rule.
	// Zero disables the default expiry.
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

type SweepCfg struct {
	// Interval between maintenance passes. Example: "1h".
	Interval time.Duration `yaml:"interval"`

	// BatchSize is how many entries one sweep step inspects before the
	// sweeper yields. Keeps long walks from starving foreground calls.
	BatchSize int `yaml:"batch_size"`

	// Rate limits sweep steps per second.
	Rate int `yaml:"rate"`
}

type TelemetryCfg struct {
	// Interval between stats log reports. Example: "5s".
	Interval time.Duration `yaml:"interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}
