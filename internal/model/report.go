package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunIDPrefix is prepended to generated run identifiers
const RunIDPrefix = "run-"

// FailureDetail carries enough context to retry a failed download by hand
type FailureDetail struct {
	URL       string `json:"url"`
	GroupName string `json:"group_name"`
	Reason    string `json:"reason"`
	Attempts  int    `json:"attempts"`
}

// RunReport aggregates everything that happened during a single run
type RunReport struct {
	ID           string          `json:"id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Pages        int             `json:"pages"`
	Discovered   int             `json:"discovered"`
	Downloaded   int             `json:"downloaded"`
	Skipped      int             `json:"skipped"`
	Rejected     int             `json:"rejected"`
	Failed       int             `json:"failed"`
	BytesWritten int64           `json:"bytes_written"`
	Failures     []FailureDetail `json:"failures,omitempty"`
}

// NewRunReport creates an empty report with a fresh ID
func NewRunReport() *RunReport {
	return &RunReport{
		ID:        generateRunID(),
		StartedAt: time.Now(),
	}
}

// AddPage records one processed page and the references found on it
func (r *RunReport) AddPage(discovered int) {
	r.Pages++
	r.Discovered += discovered
}

// AddRejected records a reference that failed validation
func (r *RunReport) AddRejected() {
	r.Rejected++
}

// AddDuplicate records a reference whose URL was already claimed in this run
func (r *RunReport) AddDuplicate() {
	r.Skipped++
}

// AddOutcome merges one download outcome into the counters
func (r *RunReport) AddOutcome(groupName string, outcome DownloadOutcome) {
	switch outcome.Status {
	case StatusDownloaded:
		r.Downloaded++
		r.BytesWritten += outcome.BytesWritten
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
		r.Failures = append(r.Failures, FailureDetail{
			URL:       outcome.Target.URL,
			GroupName: groupName,
			Reason:    outcome.LastError,
			Attempts:  outcome.Attempts,
		})
	}
}

// Finish stamps the report's end time
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took so far
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasFailures returns true if any target ended in StatusFailed
func (r *RunReport) HasFailures() bool {
	return r.Failed > 0
}

// generateRunID returns a unique run identifier
func generateRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf(RunIDPrefix+"%d", time.Now().UnixNano())
	}
	return RunIDPrefix + id.String()
}
