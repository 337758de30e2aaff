package sync

import "sync/atomic"

// Metrics counts the engine's recoverable oddities so they are observable
// without scanning logs. One instance is shared across all accounts.
type Metrics struct {
	ClassificationGaps atomic.Int64
	DuplicateInserts   atomic.Int64
	Anomalies          atomic.Int64
	SyncFailures       atomic.Int64
}

// Snapshot returns the current counter values for reporting endpoints.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"classification_gaps": m.ClassificationGaps.Load(),
		"duplicate_inserts":   m.DuplicateInserts.Load(),
		"anomalies":           m.Anomalies.Load(),
		"sync_failures":       m.SyncFailures.Load(),
	}
}
