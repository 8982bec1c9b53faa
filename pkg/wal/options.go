package wal

import (
	"strings"
	"time"
)

// Durability selects one of the four preset group-commit configurations.
type Durability int

const (
	// DurabilityNone disables the WAL entirely; callers persist via Save only.
	DurabilityNone Durability = iota
	// DurabilityLazy batches up to 1000 ops or 100ms, fsyncing each flush.
	DurabilityLazy
	// DurabilityBatched batches up to 1000 ops or 10ms, fsyncing each flush.
	DurabilityBatched
	// DurabilitySync fsyncs after every single operation.
	DurabilitySync
)

func DurabilityFromString(s string) Durability {
	switch strings.ToLower(s) {
	case "lazy":
		return DurabilityLazy
	case "batched":
		return DurabilityBatched
	case "sync":
		return DurabilitySync
	default:
		return DurabilityNone
	}
}

// Options configures the group-commit background writer. ToOptions on a
// Durability value returns the matching preset, or ok=false for
// DurabilityNone (no WAL is started).
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	Fsync         bool

	// QueueCapacity bounds the channel the writer goroutine drains;
	// Append blocks once it fills, providing backpressure.
	QueueCapacity int
}

func (d Durability) ToOptions() (Options, bool) {
	switch d {
	case DurabilityLazy:
		return Options{BatchSize: 1000, FlushInterval: 100 * time.Millisecond, Fsync: true, QueueCapacity: 100000}, true
	case DurabilityBatched:
		return Options{BatchSize: 1000, FlushInterval: 10 * time.Millisecond, Fsync: true, QueueCapacity: 100000}, true
	case DurabilitySync:
		return Options{BatchSize: 1, FlushInterval: 0, Fsync: true, QueueCapacity: 100000}, true
	default:
		return Options{}, false
	}
}
