package model

import "time"

// Activity is one recent-operation record kept in the diagnostics ring.
type Activity struct {
	At  time.Time `json:"at"`
	Op  string    `json:"op"`
	Key string    `json:"key"`
}

// TagUsage is the learning aggregate kept per tag combination. It feeds the
// warm-up ordering so frequently produced entry shapes are preloaded first.
type TagUsage struct {
	Tags     string    `json:"tags"`
	Count    int64     `json:"count"`
	AvgSize  float64   `json:"avg_size"`
	LastSeen time.Time `json:"last_seen"`
}

// StatsSnapshot is a point-in-time view of the tracker's counters.
type StatsSnapshot struct {
	Requests       int64          `json:"requests"`
	ExactHits      int64          `json:"exact_hits"`
	SimilarityHits int64          `json:"similarity_hits"`
	Misses         int64          `json:"misses"`
	Evictions      int64          `json:"evictions"`
	HitRate        float64        `json:"hit_rate"`
	AvgResponse    time.Duration  `json:"avg_response"`
	Entries        int64          `json:"entries"`
	MemBytes       int64          `json:"mem_bytes"`
	MemHuman       string         `json:"mem_human"`
	Recent         []Activity     `json:"recent,omitempty"`
	Learning       []TagUsage     `json:"learning,omitempty"`
}
