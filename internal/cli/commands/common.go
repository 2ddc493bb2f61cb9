package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/lineagebench/internal/bench"
	"github.com/leapstack-labs/lineagebench/internal/cli/config"
	"github.com/leapstack-labs/lineagebench/internal/cli/output"
	"github.com/leapstack-labs/lineagebench/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the loaded config, the logger and a renderer
// writing to the command's streams.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// JSON reports whether results should be written as JSON.
func (c *CommandContext) JSON(flag bool) bool {
	return flag || c.Renderer.EffectiveMode() == output.ModeJSON
}

// getConfig returns the current configuration, or defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.DefaultConfig()
}

// ensureStateDir creates the directory holding the state database.
func ensureStateDir(statePath string) error {
	if strings.Contains(statePath, ":memory:") {
		return nil
	}
	stateDir := filepath.Dir(statePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return nil
}

func createEngine(cfg *config.Config, logger *slog.Logger, onDay bench.DayHook) (*bench.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensureStateDir(cfg.StatePath); err != nil {
		return nil, err
	}

	return bench.New(bench.Config{
		Target:    cfg.Target.AdapterConfig(),
		StatePath: cfg.StatePath,
		Bench:     cfg.Bench,
		Lineage:   cfg.Lineage,
		OnDay:     onDay,
		Logger:    logger,
	})
}

// openStore opens and migrates the result store without touching the warehouse.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if err := ensureStateDir(cfg.StatePath); err != nil {
		return nil, err
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}
	return store, nil
}

// formatMS renders a millisecond count for humans.
func formatMS(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}
