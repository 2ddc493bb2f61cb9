// Package config provides configuration management for the lineagebench CLI.
//
// This package extends the shared configuration types from internal/config
// and pkg/core with CLI-specific fields. The shared target type is re-exported
// here via a type alias for convenience.
package config

import (
	intconfig "github.com/leapstack-labs/lineagebench/internal/config"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
// This allows CLI code to use config.TargetConfig without importing pkg/core.
type TargetConfig = core.TargetConfig

// UIConfig holds configuration for the chart server.
type UIConfig struct {
	Port  int  `koanf:"port" yaml:"port"`
	Watch bool `koanf:"watch" yaml:"watch"`
}

// DefaultUIConfig returns a UIConfig with default values.
func DefaultUIConfig() UIConfig {
	return UIConfig{
		Port:  intconfig.DefaultUIPort,
		Watch: true,
	}
}

// Config holds all CLI configuration options.
type Config struct {
	Target       *TargetConfig           `koanf:"target" yaml:"target"`
	StatePath    string                  `koanf:"state_path" yaml:"state_path"`
	Environment  string                  `koanf:"environment" yaml:"environment,omitempty"`
	Verbose      bool                    `koanf:"verbose" yaml:"verbose"`
	OutputFormat string                  `koanf:"output" yaml:"output"`
	Bench        intconfig.BenchConfig   `koanf:"bench" yaml:"bench"`
	Lineage      intconfig.LineageConfig `koanf:"lineage" yaml:"lineage"`
	UI           UIConfig                `koanf:"ui" yaml:"ui"`
	Environments map[string]EnvConfig    `koanf:"environments" yaml:"environments,omitempty"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-" yaml:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Target *TargetConfig `koanf:"target" yaml:"target,omitempty"`
}

// Default configuration values.
const (
	ConfigFileName   = "lineagebench.yaml"
	DefaultStateFile = ".lineagebench/state.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	EnvPrefix        = "LINEAGEBENCH_"
)

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	target := &TargetConfig{Type: "duckdb"}
	intconfig.ApplyTargetDefaults(target)
	return &Config{
		Target:       target,
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
		Bench:        intconfig.DefaultBenchConfig(),
		Lineage:      intconfig.DefaultLineageConfig(),
		UI:           DefaultUIConfig(),
	}
}

// defaultValues flattens DefaultConfig for the confmap provider.
func defaultValues() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"state_path":                 d.StatePath,
		"verbose":                    false,
		"output":                     d.OutputFormat,
		"bench.start_date":           d.Bench.StartDate,
		"bench.end_date":             d.Bench.EndDate,
		"bench.daily_jira_issues":    d.Bench.DailyJiraIssues,
		"bench.daily_git_commits":    d.Bench.DailyGitCommits,
		"bench.project_ids":          d.Bench.ProjectIDs,
		"bench.issue_ids":            d.Bench.IssueIDs,
		"bench.seed":                 d.Bench.Seed,
		"bench.resolve_samples":      d.Bench.ResolveSamples,
		"lineage.concurrency":        d.Lineage.Concurrency,
		"lineage.on_lookup_error":    d.Lineage.OnLookupError,
		"lineage.key_mode":           d.Lineage.KeyMode,
		"lineage.max_depth":          d.Lineage.MaxDepth,
		"lineage.timeout":            d.Lineage.Timeout,
		"lineage.lookups_per_second": d.Lineage.LookupsPerSecond,
		"lineage.retry_attempts":     d.Lineage.RetryAttempts,
		"ui.port":                    d.UI.Port,
		"ui.watch":                   d.UI.Watch,
	}
}
