package domain

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// RunState enumerates report pipeline milestones.
type RunState string

const (
	StateIdle        RunState = "Idle"
	StateFetching    RunState = "Fetching"
	StateSummarizing RunState = "Summarizing"
	StateRendering   RunState = "Rendering"
	StateSending     RunState = "Sending"
	StateDone        RunState = "Done"
	StateAborted     RunState = "Aborted"
)

// Terminal reports whether no further transition can happen.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Trigger records what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerCLI      Trigger = "cli"
)

// RunError is the logged outcome of an aborted run.
type RunError struct {
	Kind    ErrorKind
	Message string
}

// ReportRun is the in-memory record of one pipeline execution.
type ReportRun struct {
	ID           string
	Trigger      Trigger
	StartedAt    time.Time
	FinishedAt   fn.Option[time.Time]
	State        RunState
	FailedIn     fn.Option[RunState]
	FetchedCount int
	Summarized   bool
	Sent         bool
	Error        fn.Option[RunError]
}
