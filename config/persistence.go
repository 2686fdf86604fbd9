package config

import "time"

type PersistenceCfg struct {
	// Dir is the durable-storage root. One record file is written per key,
	// plus one aggregate learning-statistics record.
	Dir string `yaml:"dir"`

	// SizeBytes caps the durable storage footprint. Zero means unbounded.
	SizeBytes int64 `yaml:"size"`

	// Gzip enables gzip compression for record files and export documents,
	// reducing disk usage at the cost of extra CPU.
	Gzip bool `yaml:"gzip"`

	// IOTimeout bounds a single durable read/write/delete.
	IOTimeout time.Duration `yaml:"io_timeout"`

	// Retries is the retry budget for a failing durable operation before
	// it degrades to an error event.
	Retries int `yaml:"retries"`
}

func (cfg *PersistenceCfg) Enabled() bool {
	return cfg != nil
}
