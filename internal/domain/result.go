package domain

import "time"

// MonitorResult summarizes one cycle.
type MonitorResult struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	CheckedNotes    int `json:"checked_notes"`
	CheckedComments int `json:"checked_comments"`

	// NewCodes are codes seen for the first time this cycle, in discovery order.
	NewCodes []CodeCandidate `json:"new_codes"`
	// Retried are codes committed by an earlier cycle whose notification had failed.
	Retried []CodeCandidate `json:"retried,omitempty"`

	// Errors are the fetch failures of units that were skipped.
	Errors   []*FetchError `json:"errors"`
	Notified bool          `json:"notified"`
	State    string        `json:"state"`
}

// Duration returns how long the cycle took.
func (r *MonitorResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
