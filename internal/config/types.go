// Package config provides configuration types shared by the CLI, the
// benchmark driver, and the UI server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/pkg/adapter"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// DateLayout is the layout of every date accepted in configuration.
const DateLayout = "2006-01-02"

// BenchConfig controls the simulated daily load.
type BenchConfig struct {
	StartDate       string `koanf:"start_date" yaml:"start_date"`
	EndDate         string `koanf:"end_date" yaml:"end_date"`
	DailyJiraIssues int    `koanf:"daily_jira_issues" yaml:"daily_jira_issues"`
	DailyGitCommits int    `koanf:"daily_git_commits" yaml:"daily_git_commits"`
	// ProjectIDs and IssueIDs are half-open [min, max) ranges.
	ProjectIDs     []int `koanf:"project_ids" yaml:"project_ids,flow"`
	IssueIDs       []int `koanf:"issue_ids" yaml:"issue_ids,flow"`
	Seed           int64 `koanf:"seed" yaml:"seed"`
	ResolveSamples int   `koanf:"resolve_samples" yaml:"resolve_samples"`
}

// Dates parses the configured start and end dates.
func (b *BenchConfig) Dates() (start, end time.Time, err error) {
	start, err = time.Parse(DateLayout, b.StartDate)
	if err != nil {
		return start, end, fmt.Errorf("invalid bench.start_date %q: %w", b.StartDate, err)
	}
	end, err = time.Parse(DateLayout, b.EndDate)
	if err != nil {
		return start, end, fmt.Errorf("invalid bench.end_date %q: %w", b.EndDate, err)
	}
	return start, end, nil
}

// Validate checks ranges and counts.
func (b *BenchConfig) Validate() error {
	start, end, err := b.Dates()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("bench.end_date %s is before bench.start_date %s", b.EndDate, b.StartDate)
	}
	if b.DailyJiraIssues <= 0 || b.DailyGitCommits <= 0 {
		return fmt.Errorf("bench.daily_jira_issues and bench.daily_git_commits must be positive")
	}
	if err := validateRange("bench.project_ids", b.ProjectIDs); err != nil {
		return err
	}
	if err := validateRange("bench.issue_ids", b.IssueIDs); err != nil {
		return err
	}
	if b.ResolveSamples < 0 {
		return fmt.Errorf("bench.resolve_samples must not be negative")
	}
	return nil
}

func validateRange(name string, r []int) error {
	if len(r) != 2 {
		return fmt.Errorf("%s must be [min, max), got %v", name, r)
	}
	if r[0] >= r[1] {
		return fmt.Errorf("%s is empty: [%d, %d)", name, r[0], r[1])
	}
	return nil
}

// LineageConfig controls resolution and the edge store's protections.
type LineageConfig struct {
	Concurrency      int           `koanf:"concurrency" yaml:"concurrency"`
	OnLookupError    string        `koanf:"on_lookup_error" yaml:"on_lookup_error"`
	KeyMode          string        `koanf:"key_mode" yaml:"key_mode"`
	MaxDepth         int           `koanf:"max_depth" yaml:"max_depth"`
	Timeout          time.Duration `koanf:"timeout" yaml:"timeout"`
	LookupsPerSecond float64       `koanf:"lookups_per_second" yaml:"lookups_per_second"`
	RetryAttempts    uint          `koanf:"retry_attempts" yaml:"retry_attempts"`
}

// MarshalYAML writes the timeout as a duration string such as "30s".
func (l LineageConfig) MarshalYAML() (any, error) {
	return struct {
		Concurrency      int     `yaml:"concurrency"`
		OnLookupError    string  `yaml:"on_lookup_error"`
		KeyMode          string  `yaml:"key_mode"`
		MaxDepth         int     `yaml:"max_depth"`
		Timeout          string  `yaml:"timeout"`
		LookupsPerSecond float64 `yaml:"lookups_per_second"`
		RetryAttempts    uint    `yaml:"retry_attempts"`
	}{
		Concurrency:      l.Concurrency,
		OnLookupError:    l.OnLookupError,
		KeyMode:          l.KeyMode,
		MaxDepth:         l.MaxDepth,
		Timeout:          l.Timeout.String(),
		LookupsPerSecond: l.LookupsPerSecond,
		RetryAttempts:    l.RetryAttempts,
	}, nil
}

// ResolverOptions converts the configuration into resolver options.
func (l *LineageConfig) ResolverOptions() (lineage.Options, error) {
	policy, err := lineage.ParseFailurePolicy(l.OnLookupError)
	if err != nil {
		return lineage.Options{}, err
	}
	mode, err := lineage.ParseKeyMode(l.KeyMode)
	if err != nil {
		return lineage.Options{}, err
	}
	if l.Concurrency < 0 || l.MaxDepth < 0 {
		return lineage.Options{}, fmt.Errorf("lineage.concurrency and lineage.max_depth must not be negative")
	}
	return lineage.Options{
		Concurrency:   l.Concurrency,
		OnLookupError: policy,
		KeyMode:       mode,
		MaxDepth:      l.MaxDepth,
	}, nil
}

// Validate checks option names and bounds.
func (l *LineageConfig) Validate() error {
	if _, err := l.ResolverOptions(); err != nil {
		return err
	}
	if l.LookupsPerSecond < 0 {
		return fmt.Errorf("lineage.lookups_per_second must not be negative")
	}
	if l.Timeout < 0 {
		return fmt.Errorf("lineage.timeout must not be negative")
	}
	return nil
}

// DefaultSchemaForType returns the default schema for a warehouse type.
func DefaultSchemaForType(dbType string) string {
	if strings.EqualFold(dbType, "postgres") {
		return "public"
	}
	return "main"
}

// ValidateTarget checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil {
		return fmt.Errorf("target is required")
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}
