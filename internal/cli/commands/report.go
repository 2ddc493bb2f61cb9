package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/lineagebench/internal/cli/output"
	"github.com/leapstack-labs/lineagebench/internal/state"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	"github.com/spf13/cobra"
)

// ReportOptions holds options for the report command.
type ReportOptions struct {
	RunID      string
	List       bool
	Tables     bool
	Limit      int
	JSONOutput bool
}

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	opts := &ReportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show recorded benchmark results",
		Long: `Print the timings of a recorded run, the latest one by default.

JSON output uses the export shape {args, timings: [{date, duration_ms,
lineage_ms, lineage_edges, table_stats: [...]}]}.`,
		Example: `  # Latest run
  lineagebench report

  # A specific run with per-table sizes
  lineagebench report --run 6f1d... --tables

  # Recent runs
  lineagebench report --list

  # Export for plotting elsewhere
  lineagebench report --json > results.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "Run ID (default: latest)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "List recent runs instead")
	cmd.Flags().BoolVar(&opts.Tables, "tables", false, "Include per-table sizes for every day")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Number of runs shown by --list")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("run", "list")

	return cmd
}

func runReport(cmd *cobra.Command, opts *ReportOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer
	jsonOut := cc.JSON(opts.JSONOutput)

	store, err := openStore(cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()

	if opts.List {
		runs, err := store.ListRuns(ctx, opts.Limit)
		if err != nil {
			return err
		}
		if jsonOut {
			if runs == nil {
				runs = []*core.Run{}
			}
			return r.JSON(runs)
		}
		renderRunList(r, runs)
		return nil
	}

	var run *core.Run
	if opts.RunID != "" {
		run, err = store.GetRun(ctx, opts.RunID)
		if errors.Is(err, state.ErrRunNotFound) {
			return fmt.Errorf("run %s not found", opts.RunID)
		}
	} else {
		run, err = store.GetLatestRun(ctx)
	}
	if err != nil {
		return err
	}
	if run == nil {
		return errors.New("no benchmark runs recorded yet; run 'lineagebench bench' first")
	}

	if jsonOut {
		return r.JSON(state.ResultsOf(run))
	}

	renderRun(r, run)
	if opts.Tables && len(run.Timings) > 0 {
		r.Println("")
		r.Header(2, "Table sizes")
		r.Table(tableStatHeaders, tableStatRows(run.Timings))
	}
	return nil
}

func renderRunList(r *output.Renderer, runs []*core.Run) {
	if len(runs) == 0 {
		r.Muted("No benchmark runs recorded yet.")
		return
	}

	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []any{
			run.ID,
			string(run.Status),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%s to %s", run.Args.StartDate, run.Args.EndDate),
			run.Args.Target,
		})
	}
	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	r.Table([]string{"ID", "Status", "Started", "Days", "Target"}, rows)
}

var tableStatHeaders = []string{"Date", "Table", "Rows", "Bytes", "Parts"}

func tableStatRows(timings []core.DayTiming) [][]any {
	var rows [][]any
	for _, day := range timings {
		for _, ts := range day.TableStats {
			rows = append(rows, []any{day.Date, ts.Table, ts.TotalRows, ts.TotalBytes, ts.PartCount})
		}
	}
	return rows
}
