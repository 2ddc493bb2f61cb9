package commands

import (
	"fmt"

	"github.com/leapstack-labs/lineagebench/internal/warehouse"
	"github.com/spf13/cobra"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove every row from the warehouse",
		Long: `Delete all rows from the layer tables and the lineage log.

Tables are kept so the next bench starts from an empty warehouse. Recorded
benchmark results in the state database are not touched.`,
		Example: `  lineagebench clean
  lineagebench clean --database other.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)

			eng, err := createEngine(cc.Cfg, cc.Logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if err := eng.Clean(cmd.Context()); err != nil {
				return fmt.Errorf("clean failed: %w", err)
			}

			cc.Renderer.Success(fmt.Sprintf("Cleaned %d tables", len(warehouse.Tables)))
			return nil
		},
	}
}
