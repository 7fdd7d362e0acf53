package sync

import "github.com/readstash/readstash/internal/models"

// Run outcome values.
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// ScopeReport summarizes one resource scope of a run.
type ScopeReport struct {
	Scope     string            `json:"scope"`
	Pages     int               `json:"pages"`
	Fetched   int               `json:"fetched"`
	Upserted  int               `json:"upserted"`
	Versioned int               `json:"versioned"`
	Unchanged int               `json:"unchanged"`
	Skipped   int               `json:"skipped"`
	Status    string            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Watermark *models.Watermark `json:"watermark,omitempty"`
}

// Report is what a sync run hands back to its caller. Counts cover only
// pages that actually committed, so the report stays truthful when a run
// stops partway.
type Report struct {
	Status string        `json:"status"`
	Scopes []ScopeReport `json:"scopes"`
}

// merge folds a scope outcome into the run-level status: any failure makes
// the run failed, any partial scope makes a non-failed run partial.
func (r *Report) merge(sr ScopeReport) {
	r.Scopes = append(r.Scopes, sr)
	switch {
	case sr.Status == StatusFailed:
		r.Status = StatusFailed
	case sr.Status == StatusPartial && r.Status != StatusFailed:
		r.Status = StatusPartial
	case r.Status == "":
		r.Status = StatusSucceeded
	}
}
