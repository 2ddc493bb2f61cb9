package core

import (
	"context"
	"time"
)

// RunStatus represents the lifecycle of a benchmark run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunArgs are the parameters a benchmark run was started with.
type RunArgs struct {
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	DailyJiraIssues int    `json:"daily_jira_issues"`
	DailyGitCommits int    `json:"daily_git_commits"`
	ProjectIDs      [2]int `json:"project_ids"`
	IssueIDs        [2]int `json:"issue_ids"`
	Seed            int64  `json:"seed"`
	Target          string `json:"target"`
	ResolveSamples  int    `json:"resolve_samples"`
}

// DayTiming is the measurement taken after simulating one day.
type DayTiming struct {
	Date         string       `json:"date"`
	DurationMS   int64        `json:"duration_ms"`
	LineageMS    int64        `json:"lineage_ms"`
	LineageEdges int          `json:"lineage_edges"`
	TableStats   []TableStats `json:"table_stats"`
}

// Run is one benchmark invocation and its per-day timings.
type Run struct {
	ID          string      `json:"id"`
	Status      RunStatus   `json:"status"`
	Args        RunArgs     `json:"args"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
	Timings     []DayTiming `json:"timings"`
}

// Store persists benchmark runs and their measurements.
type Store interface {
	// Open opens the store at the given path.
	Open(path string) error

	// Close closes the store.
	Close() error

	// InitSchema applies pending migrations.
	InitSchema() error

	// CreateRun records the start of a run.
	CreateRun(ctx context.Context, run *Run) error

	// RecordDay appends one day of measurements to a run.
	RecordDay(ctx context.Context, runID string, day DayTiming) error

	// CompleteRun marks a run finished with the given status.
	CompleteRun(ctx context.Context, runID string, status RunStatus, errMsg string) error

	// GetRun loads a run with all its timings.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// GetLatestRun loads the most recently started run, or nil when none exist.
	GetLatestRun(ctx context.Context) (*Run, error)

	// ListRuns returns the most recent runs without timings.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}
