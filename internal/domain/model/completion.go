package model

import (
	"strings"
	"time"
)

type CompletionSource string

const (
	SourcePoll    CompletionSource = "poll"
	SourcePassive CompletionSource = "passive"
	SourceExpiry  CompletionSource = "expiry"
	SourceManual  CompletionSource = "manual"
)

type CompletionOutcome string

const (
	OutcomeCompleted CompletionOutcome = "completed"
	OutcomeFailed    CompletionOutcome = "failed"
	OutcomeExpired   CompletionOutcome = "expired"
)

// CompletionEvent is what a detection strategy produces when it believes a job
// is finished. Several producers may emit one for the same job; the consumer
// applies at most one.
type CompletionEvent struct {
	JobID   string
	Source  CompletionSource
	Outcome CompletionOutcome
	At      time.Time
}

// RunBucket is the coarse classification of a vendor run status.
type RunBucket int

const (
	RunInProgress RunBucket = iota
	RunComplete
	RunFailed
)

func (b RunBucket) String() string {
	switch b {
	case RunComplete:
		return "complete"
	case RunFailed:
		return "failed"
	default:
		return "in_progress"
	}
}

// ClassifyRunStatus maps a free-text status into a bucket, case-insensitively.
// Unknown values, including the empty string, are still in progress.
func ClassifyRunStatus(status string) RunBucket {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "finished", "done", "success":
		return RunComplete
	case "failed", "error", "cancelled":
		return RunFailed
	default:
		return RunInProgress
	}
}
