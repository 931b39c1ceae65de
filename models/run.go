package models

import (
	"fmt"
	"time"
)

// RunState is a step in the per-source state machine.
type RunState string

const (
	StatePending    RunState = "PENDING"
	StatePaging     RunState = "PAGING"
	StateExtracting RunState = "EXTRACTING"
	StateWriting    RunState = "WRITING"
	StateSucceeded  RunState = "SUCCEEDED"
	StatePartial    RunState = "PARTIAL"
	StateFailed     RunState = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s RunState) Terminal() bool {
	return s == StateSucceeded || s == StatePartial || s == StateFailed
}

var allowedTransitions = map[RunState][]RunState{
	StatePending:    {StatePaging, StatePartial, StateFailed},
	StatePaging:     {StateExtracting, StateWriting, StateSucceeded, StatePartial, StateFailed},
	StateExtracting: {StateWriting, StatePaging, StatePartial, StateFailed},
	StateWriting:    {StatePaging, StateSucceeded, StatePartial, StateFailed},
}

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to RunState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RunStatus is the terminal outcome reported to operators.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusFailed  RunStatus = "failed"
)

// StatusFor maps a terminal state to its reported status.
func StatusFor(s RunState) RunStatus {
	switch s {
	case StateSucceeded:
		return StatusSuccess
	case StatePartial:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// MaxErrorSamples bounds SourceRunMetadata.ErrorSamples.
const MaxErrorSamples = 10

// SourceRunMetadata describes one (source, run). Created when the run starts,
// finalized when it ends; downstream components only read it.
type SourceRunMetadata struct {
	RunID                string    `json:"run_id"`
	Source               string    `json:"source"`
	ListingsSeen         int       `json:"listings_seen"`
	UniquesWritten       int       `json:"uniques_written"`
	Updated              int       `json:"updated"`
	DuplicatesSuppressed int       `json:"duplicates_suppressed"`
	Skipped              int       `json:"skipped"`
	Errors               int       `json:"errors"`
	PagesProcessed       int       `json:"pages_processed"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
	State                RunState  `json:"state"`
	Status               RunStatus `json:"status"`
	ErrorSamples         []string  `json:"error_samples,omitempty"`
}

// Committed is the number of rows written or updated in storage.
func (m *SourceRunMetadata) Committed() int {
	return m.UniquesWritten + m.Updated
}

// RecordError counts an error and keeps a bounded sample for triage.
func (m *SourceRunMetadata) RecordError(context string, err error) {
	m.Errors++
	if len(m.ErrorSamples) < MaxErrorSamples {
		m.ErrorSamples = append(m.ErrorSamples, fmt.Sprintf("%s: %v", context, err))
	}
}

// Duration is the wall time of the run.
func (m *SourceRunMetadata) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}
