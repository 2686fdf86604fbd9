package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultThreshold          = 0.85
	defaultConfidenceFloor    = 0.5
	defaultSignatureCacheSize = 256
	defaultSweepInterval      = time.Hour
	defaultSweepBatchSize     = 128
	defaultSweepRate          = 100
	defaultIOTimeout          = 2 * time.Second
	defaultWarmupMaxFileBytes = 1 << 20
)

func (cfg *Cache) AdjustConfig() {
	if cfg.Similarity.Enabled() {
		if cfg.Similarity.Threshold <= 0 {
			cfg.Similarity.Threshold = defaultThreshold
		}
		if cfg.Similarity.ConfidenceFloor <= 0 {
			cfg.Similarity.ConfidenceFloor = defaultConfidenceFloor
		}
		if cfg.Similarity.SignatureCacheSize <= 0 {
			cfg.Similarity.SignatureCacheSize = defaultSignatureCacheSize
		}
	}

	if cfg.Persistence.Enabled() {
		if cfg.Persistence.IOTimeout <= 0 {
			cfg.Persistence.IOTimeout = defaultIOTimeout
		}
		if cfg.Persistence.Retries < 0 {
			cfg.Persistence.Retries = 0
		}
	}

	if cfg.Warmup.Enabled() && cfg.Warmup.MaxFileBytes <= 0 {
		cfg.Warmup.MaxFileBytes = defaultWarmupMaxFileBytes
	}

	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = defaultSweepInterval
	}
	if cfg.Sweep.BatchSize <= 0 {
		cfg.Sweep.BatchSize = defaultSweepBatchSize
	}
	if cfg.Sweep.Rate <= 0 {
		cfg.Sweep.Rate = defaultSweepRate
	}
}

func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Cache
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.AdjustConfig()

	return cfg, nil
}
