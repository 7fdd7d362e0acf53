package models

import "time"

// Batch status values.
const (
	BatchRunning   = "running"
	BatchSucceeded = "succeeded"
	BatchPartial   = "partial"
	BatchFailed    = "failed"
)

// Batch is the bookkeeping row for one sync run. It is written outside the
// page transactions: created when a run starts and finalized when it ends,
// whatever the outcome.
type Batch struct {
	ID        int64
	Scope     string
	StartedAt time.Time
	EndedAt   time.Time

	// WriteTime is when the final page commit landed, zero if none did.
	WriteTime time.Time

	Pages    int
	Upserted int
	Skipped  int

	Status string
}
