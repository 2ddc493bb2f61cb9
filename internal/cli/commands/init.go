package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/lineagebench/internal/cli/config"
	"github.com/leapstack-labs/lineagebench/internal/cli/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const configHeader = `# lineagebench configuration.
# Every key can be overridden with LINEAGEBENCH_<KEY> (nested keys joined
# with "__", e.g. LINEAGEBENCH_BENCH__SEED) or with command flags.
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default lineagebench.yaml",
		Long: `Initialize a benchmark project by writing lineagebench.yaml with every
setting at its default value.

The default target is a DuckDB file next to the configuration; results are
recorded in .lineagebench/state.db.`,
		Example: `  # Initialize in current directory
  lineagebench init

  # Initialize in a new directory
  lineagebench init my-bench

  # Force overwrite existing config
  lineagebench init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cc := NewCommandContext(cmd)
			return runInit(cc.Renderer, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	content, err := defaultConfigYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	r.Success(fmt.Sprintf("Created %s", configPath))
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Adjust target and bench settings in " + config.ConfigFileName)
	r.Println("  2. Run 'lineagebench bench' to simulate the configured days")
	r.Println("  3. Run 'lineagebench serve' to chart the results")

	return nil
}

// defaultConfigYAML renders the default configuration.
func defaultConfigYAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to render configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
