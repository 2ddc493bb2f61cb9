package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/lineagebench/internal/cli/output"
	"github.com/leapstack-labs/lineagebench/internal/state"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	"github.com/spf13/cobra"
)

// BenchOptions holds options for the bench command.
type BenchOptions struct {
	JSONOutput bool
}

// NewBenchCommand creates the bench command.
func NewBenchCommand() *cobra.Command {
	opts := &BenchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Simulate daily loads and time lineage resolution",
		Long: `Run the layered pipeline once per day from the start date to the end date.

Each day loads synthetic Jira issues and Git commits, rebuilds the detail,
middle and summary layers, and records a lineage edge for every derived row.
After the pipeline, the ancestry of a sample of that day's summary rows is
resolved. Pipeline time, lineage time and table sizes are recorded in the
state database as each day completes.`,
		Example: `  # Benchmark the configured date range
  lineagebench bench

  # One week with heavier load and a fixed seed
  lineagebench bench --start 2024-01-01 --end 2024-01-07 --commits 500 --seed 42

  # Machine-readable results
  lineagebench bench --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, opts)
		},
	}

	// Values reach the engine through the config loader.
	cmd.Flags().String("start", "", "First simulated day (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Last simulated day (YYYY-MM-DD)")
	cmd.Flags().Int("issues", 0, "Jira issues generated per day")
	cmd.Flags().Int("commits", 0, "Git commits generated per day")
	cmd.Flags().Int64("seed", 0, "Generator seed (0 = time based)")
	cmd.Flags().Int("samples", 0, "Summary rows resolved per day for lineage timing")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output results as JSON")

	return cmd
}

func runBench(cmd *cobra.Command, opts *BenchOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer
	jsonOut := cc.JSON(opts.JSONOutput)

	onDay := func(_ string, day core.DayTiming) {
		if jsonOut {
			return
		}
		r.Success(fmt.Sprintf("%s  pipeline %s  lineage %s (%d edges)",
			day.Date, formatMS(day.DurationMS), formatMS(day.LineageMS), day.LineageEdges))
	}

	eng, err := createEngine(cc.Cfg, cc.Logger, onDay)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if !jsonOut {
		r.Header(1, "Benchmark")
		r.KeyValue("Target", cc.Cfg.Target.Type)
		r.KeyValue("Days", fmt.Sprintf("%s to %s", cc.Cfg.Bench.StartDate, cc.Cfg.Bench.EndDate))
		r.KeyValue("Seed", fmt.Sprintf("%d", eng.Seed()))
		r.Println("")
	}

	run, runErr := eng.Run(cmd.Context())
	if run == nil {
		return runErr
	}

	if jsonOut {
		if err := r.JSON(state.ResultsOf(run)); err != nil {
			return err
		}
		return runErr
	}

	r.Println("")
	renderRun(r, run)
	return runErr
}

// renderRun prints a run's summary and its per-day timings.
func renderRun(r *output.Renderer, run *core.Run) {
	r.Header(2, "Run "+run.ID)
	r.KeyValue("Status", string(run.Status))
	r.KeyValue("Started", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.CompletedAt != nil {
		r.KeyValue("Elapsed", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String())
	}
	r.KeyValue("Seed", fmt.Sprintf("%d", run.Args.Seed))
	if run.Error != "" {
		r.KeyValue("Error", run.Error)
	}
	r.Println("")

	if len(run.Timings) == 0 {
		r.Muted("No days recorded.")
		return
	}
	r.Table(timingHeaders, timingRows(run.Timings))
}

var timingHeaders = []string{"Date", "Pipeline ms", "Lineage ms", "Edges", "Rows"}

func timingRows(timings []core.DayTiming) [][]any {
	rows := make([][]any, 0, len(timings))
	for _, day := range timings {
		var total int64
		for _, ts := range day.TableStats {
			total += ts.TotalRows
		}
		rows = append(rows, []any{day.Date, day.DurationMS, day.LineageMS, day.LineageEdges, total})
	}
	return rows
}
