package model

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ScrapeRun is the audit record of one source run. It is the only trace
// left behind when a source is entirely unreachable.
type ScrapeRun struct {
	ID          string
	Source      string
	Status      RunStatus
	JobsFound   int
	JobsAdded   int
	JobsUpdated int
	JobsSkipped int
	JobsFailed  int
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Duration    time.Duration
}
