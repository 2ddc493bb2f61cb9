package config

import (
	"time"

	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// Default configuration values.
const (
	DefaultDatabase        = "bench.duckdb"
	DefaultStartDate       = "2024-01-01"
	DefaultEndDate         = "2024-01-02"
	DefaultDailyJiraIssues = 10
	DefaultDailyGitCommits = 10
	DefaultResolveSamples  = 3
	DefaultConcurrency     = lineage.DefaultConcurrency
	DefaultOnLookupError   = string(lineage.FailAbort)
	DefaultKeyMode         = string(lineage.KeyBySet)
	DefaultLineageTimeout  = 30 * time.Second
	DefaultRetryAttempts   = 1
	DefaultUIPort          = 8766
)

// DefaultProjectIDs and DefaultIssueIDs are half-open [min, max) ranges.
var (
	DefaultProjectIDs = []int{1, 10}
	DefaultIssueIDs   = []int{1, 99}
)

// DefaultBenchConfig returns the bench section with default values.
func DefaultBenchConfig() BenchConfig {
	return BenchConfig{
		StartDate:       DefaultStartDate,
		EndDate:         DefaultEndDate,
		DailyJiraIssues: DefaultDailyJiraIssues,
		DailyGitCommits: DefaultDailyGitCommits,
		ProjectIDs:      append([]int(nil), DefaultProjectIDs...),
		IssueIDs:        append([]int(nil), DefaultIssueIDs...),
		ResolveSamples:  DefaultResolveSamples,
	}
}

// DefaultLineageConfig returns the lineage section with default values.
func DefaultLineageConfig() LineageConfig {
	return LineageConfig{
		Concurrency:   DefaultConcurrency,
		OnLookupError: DefaultOnLookupError,
		KeyMode:       DefaultKeyMode,
		Timeout:       DefaultLineageTimeout,
		RetryAttempts: DefaultRetryAttempts,
	}
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}

	if t.Type == "" {
		t.Type = "duckdb"
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}

	switch t.Type {
	case "postgres":
		if t.Port == 0 {
			t.Port = 5432
		}
	case "duckdb":
		if t.Database == "" {
			t.Database = DefaultDatabase
		}
	}
}
