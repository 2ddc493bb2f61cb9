package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/lineagebench/internal/cli/output"
	intconfig "github.com/leapstack-labs/lineagebench/internal/config"
	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/internal/warehouse"
	"github.com/spf13/cobra"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Table      string
	ID         string
	Date       string
	Limit      int
	JSONOutput bool
}

// LineageOutput is the JSON shape of one resolution.
type LineageOutput struct {
	Root      lineage.Edge   `json:"root"`
	Edges     []lineage.Edge `json:"edges"`
	Lookups   int            `json:"lookups"`
	Depth     int            `json:"depth"`
	Truncated bool           `json:"truncated"`
	Skipped   []string       `json:"skipped"`
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Resolve the ancestry of warehouse records",
		Long: `Walk lineage edges from a record back to the source rows it was built from.

With --table and --id, every stored edge producing that record is a root.
With --date, every summary row written on that day is a root (--limit caps
how many). Each root's ancestry is printed root first, in discovery order.`,
		Example: `  # Ancestry of one project summary row
  lineagebench lineage --table dws_projects --id 3f9c...

  # Ancestry of the first 5 summary rows of a day
  lineagebench lineage --date 2024-01-02 --limit 5

  # As JSON
  lineagebench lineage --date 2024-01-02 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLineage(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "Table of the record to resolve")
	cmd.Flags().StringVar(&opts.ID, "id", "", "data_id of the record to resolve")
	cmd.Flags().StringVar(&opts.Date, "date", "", "Resolve every summary row of this day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of roots for --date (0 = all)")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON")

	cmd.MarkFlagsMutuallyExclusive("date", "table")
	cmd.MarkFlagsRequiredTogether("table", "id")
	cmd.MarkFlagsOneRequired("date", "table")

	_ = cmd.RegisterFlagCompletionFunc("table", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return warehouse.Tables, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runLineage(cmd *cobra.Command, opts *LineageOptions) error {
	cc := NewCommandContext(cmd)

	eng, err := createEngine(cc.Cfg, cc.Logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var results []*lineage.Result
	if opts.Date != "" {
		day, perr := time.Parse(intconfig.DateLayout, opts.Date)
		if perr != nil {
			return fmt.Errorf("invalid --date %q: %w", opts.Date, perr)
		}
		results, err = eng.ResolveDay(cmd.Context(), day, opts.Limit)
	} else {
		results, err = eng.ResolveRecord(cmd.Context(), opts.Table, opts.ID)
	}
	if err != nil {
		return err
	}

	if cc.JSON(opts.JSONOutput) {
		return cc.Renderer.JSON(lineageOutputs(results))
	}
	renderLineage(cc.Renderer, results)
	return nil
}

func lineageOutputs(results []*lineage.Result) []LineageOutput {
	out := make([]LineageOutput, 0, len(results))
	for _, res := range results {
		lo := LineageOutput{
			Edges:     res.Edges,
			Lookups:   res.Lookups,
			Depth:     res.Depth,
			Truncated: res.Truncated,
			Skipped:   []string{},
		}
		if len(res.Edges) > 0 {
			lo.Root = res.Edges[0]
		}
		for _, s := range res.Skipped {
			lo.Skipped = append(lo.Skipped, s.Error())
		}
		out = append(out, lo)
	}
	return out
}

func renderLineage(r *output.Renderer, results []*lineage.Result) {
	if len(results) == 0 {
		r.Muted("No lineage edges found.")
		return
	}

	for i, res := range results {
		if i > 0 {
			r.Println("")
		}
		root := res.Edges[0]
		r.Header(2, fmt.Sprintf("%s %s", root.ToTable, root.ToID))
		r.KeyValue("Edges", fmt.Sprintf("%d", len(res.Edges)))
		r.KeyValue("Lookups", fmt.Sprintf("%d", res.Lookups))
		r.KeyValue("Depth", fmt.Sprintf("%d", res.Depth))
		if res.Truncated {
			r.Warning("expansion stopped at lineage.max_depth")
		}
		for _, s := range res.Skipped {
			r.Warning("skipped: " + s.Error())
		}
		r.Println("")

		rows := make([][]any, 0, len(res.Edges))
		for n, e := range res.Edges {
			rows = append(rows, []any{n, e.ToTable, e.ToID, e.FromTable, strings.Join(e.FromIDs, ", "), strings.Join(e.ToFacets, ", ")})
		}
		r.Table([]string{"#", "To table", "To id", "From table", "From ids", "Facets"}, rows)
	}
}
