package model

// OutcomeStatus represents the terminal state of a download target
type OutcomeStatus string

const (
	// StatusDownloaded means the file was fetched and written to disk
	StatusDownloaded OutcomeStatus = "Downloaded"

	// StatusSkipped means no fetch was needed for this target
	StatusSkipped OutcomeStatus = "Skipped"

	// StatusFailed means the download gave up after exhausting its attempts
	StatusFailed OutcomeStatus = "Failed"
)

// Skip reasons recorded in DownloadOutcome
const (
	SkipAlreadyExists = "already_exists"
	SkipCancelled     = "cancelled"
)

// String returns the string representation of OutcomeStatus
func (s OutcomeStatus) String() string {
	return string(s)
}

// IsSuccess returns true if the target ended without a failure
func (s OutcomeStatus) IsSuccess() bool {
	return s == StatusDownloaded || s == StatusSkipped
}

// IsFailure returns true if the target exhausted its attempts
func (s OutcomeStatus) IsFailure() bool {
	return s == StatusFailed
}

// DownloadOutcome is the terminal result of one validated target
type DownloadOutcome struct {
	Target       ValidatedTarget
	Status       OutcomeStatus
	SkipReason   string // set when Status is StatusSkipped
	LastError    string // last error message if any
	Attempts     int    // fetch attempts performed
	BytesWritten int64  // bytes written to the final file
}

// Downloaded builds a successful outcome
func Downloaded(target ValidatedTarget, bytesWritten int64) DownloadOutcome {
	return DownloadOutcome{
		Target:       target,
		Status:       StatusDownloaded,
		BytesWritten: bytesWritten,
	}
}

// Skipped builds an outcome for a target that needed no fetch
func Skipped(target ValidatedTarget, reason string) DownloadOutcome {
	return DownloadOutcome{
		Target:     target,
		Status:     StatusSkipped,
		SkipReason: reason,
	}
}

// Failed builds an outcome for a target that exhausted its attempts
func Failed(target ValidatedTarget, err error, attempts int) DownloadOutcome {
	outcome := DownloadOutcome{
		Target:   target,
		Status:   StatusFailed,
		Attempts: attempts,
	}
	if err != nil {
		outcome.LastError = err.Error()
	}
	return outcome
}
