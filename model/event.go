package model

import "time"

// EventType classifies the observable conditions the engine reports.
type EventType string

const (
	// EventError reports a degraded-but-recovered condition: a failed
	// durable write/remove or a watch that could not be set up.
	EventError EventType = "error"

	// EventEvicted reports entries removed by an eviction pass.
	EventEvicted EventType = "evicted"

	// EventInvalidated reports an entry removed explicitly or by a rule.
	EventInvalidated EventType = "invalidated"

	// EventExpired reports an entry removed by the maintenance sweep.
	EventExpired EventType = "expired"
)

// Event is delivered to registered listeners. Every degraded condition is
// observable so operators can detect a cache silently running memory-only.
type Event struct {
	Type    EventType `json:"type"`
	Op      string    `json:"op"`
	Key     string    `json:"key,omitempty"`
	Message string    `json:"message,omitempty"`
	Count   int64     `json:"count,omitempty"`
	At      time.Time `json:"at"`
}
