package commands

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/lineagebench/internal/cli/testutil"
	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		use   string
		flags []string
	}{
		{"bench", "bench", []string{"start", "end", "issues", "commits", "seed", "samples", "json"}},
		{"clean", "clean", nil},
		{"lineage", "lineage", []string{"table", "id", "date", "limit", "json"}},
		{"report", "report", []string{"run", "list", "tables", "limit", "json"}},
		{"serve", "serve", []string{"port", "watch", "dev"}},
		{"init", "init [directory]", []string{"force"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := map[string]func() *cobra.Command{
				"bench":   NewBenchCommand,
				"clean":   NewCleanCommand,
				"lineage": NewLineageCommand,
				"report":  NewReportCommand,
				"serve":   NewServeCommand,
				"init":    NewInitCommand,
			}[tt.name]()

			assert.Equal(t, tt.use, cmd.Use)
			assert.NotEmpty(t, cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, cmd.Long, "Long should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func sampleRun() *core.Run {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(1500 * time.Millisecond)
	return &core.Run{
		ID:          "run-1",
		Status:      core.RunStatusCompleted,
		StartedAt:   started,
		CompletedAt: &completed,
		Args:        core.RunArgs{StartDate: "2024-01-01", EndDate: "2024-01-02", Seed: 7, Target: "duckdb"},
		Timings: []core.DayTiming{
			{
				Date: "2024-01-01", DurationMS: 120, LineageMS: 8, LineageEdges: 14,
				TableStats: []core.TableStats{
					{Table: "ods_git_commits", TotalRows: 10},
					{Table: "data_lineage", TotalRows: 30},
				},
			},
			{
				Date: "2024-01-02", DurationMS: 150, LineageMS: 9, LineageEdges: 16,
				TableStats: []core.TableStats{
					{Table: "ods_git_commits", TotalRows: 20},
					{Table: "data_lineage", TotalRows: 60},
				},
			},
		},
	}
}

func TestTimingRows(t *testing.T) {
	rows := timingRows(sampleRun().Timings)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"2024-01-01", int64(120), int64(8), 14, int64(40)}, rows[0])
	assert.Equal(t, []any{"2024-01-02", int64(150), int64(9), 16, int64(80)}, rows[1])
}

func TestTableStatRows(t *testing.T) {
	rows := tableStatRows(sampleRun().Timings)
	require.Len(t, rows, 4)
	assert.Equal(t, "data_lineage", rows[3][1])
	assert.Equal(t, int64(60), rows[3][2])
}

func TestRenderRun(t *testing.T) {
	tests := []struct {
		name   string
		run    func() *core.Run
		verify func(t *testing.T, out string)
	}{
		{
			name: "completed run",
			run:  sampleRun,
			verify: func(t *testing.T, out string) {
				assert.Contains(t, out, "## Run run-1")
				assert.Contains(t, out, "**Status:** completed")
				assert.Contains(t, out, "**Elapsed:** 1.5s")
				assert.Contains(t, out, "| 2024-01-02 | 150 | 9 | 16 | 80 |")
			},
		},
		{
			name: "failed run without days",
			run: func() *core.Run {
				return &core.Run{ID: "run-2", Status: core.RunStatusFailed, Error: "boom"}
			},
			verify: func(t *testing.T, out string) {
				assert.Contains(t, out, "**Error:** boom")
				assert.Contains(t, out, "No days recorded.")
				assert.NotContains(t, out, "Elapsed")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewTestRendererMarkdown()
			renderRun(r.Renderer, tt.run())
			tt.verify(t, r.Output())
			testutil.AssertValidMarkdown(t, r.Output())
			testutil.AssertNoANSI(t, r.Output())
		})
	}
}

func TestRenderRunList(t *testing.T) {
	r := testutil.NewTestRendererMarkdown()
	renderRunList(r.Renderer, nil)
	assert.Contains(t, r.Output(), "No benchmark runs recorded yet.")

	r.Reset()
	renderRunList(r.Renderer, []*core.Run{sampleRun()})
	assert.Contains(t, r.Output(), "# Runs (1)")
	assert.Contains(t, r.Output(), "| run-1 | completed |")
	assert.Contains(t, r.Output(), "2024-01-01 to 2024-01-02")
}

func lineageResult() *lineage.Result {
	root := lineage.Edge{FromTable: "dwd_git_commits", FromIDs: []string{"c1", "c2"}, ToTable: "dws_projects", ToID: "p1", ToFacets: []string{"commits"}}
	parent := lineage.Edge{FromTable: "ods_git_commits", FromIDs: []string{"o1"}, ToTable: "dwd_git_commits", ToID: "c1"}
	return &lineage.Result{
		Edges:   []lineage.Edge{root, parent},
		Lookups: 2,
		Depth:   2,
		Skipped: []*lineage.LookupError{{Table: "dwd_git_commits", IDs: []string{"c2"}, Err: errors.New("timeout")}},
	}
}

func TestRenderLineage(t *testing.T) {
	r := testutil.NewTestRendererMarkdown()
	renderLineage(r.Renderer, nil)
	assert.Contains(t, r.Output(), "No lineage edges found.")

	r.Reset()
	renderLineage(r.Renderer, []*lineage.Result{lineageResult()})
	out := r.Output()
	assert.Contains(t, out, "## dws_projects p1")
	assert.Contains(t, out, "**Edges:** 2")
	assert.Contains(t, out, "| 0 | dws_projects | p1 | dwd_git_commits | c1, c2 | commits |")
	assert.Contains(t, out, "| 1 | dwd_git_commits | c1 | ods_git_commits | o1 |")
	assert.Contains(t, r.ErrorOutput(), "skipped:")
}

func TestLineageOutputs(t *testing.T) {
	outs := lineageOutputs([]*lineage.Result{lineageResult()})
	require.Len(t, outs, 1)
	assert.Equal(t, "p1", outs[0].Root.ToID)
	assert.Len(t, outs[0].Edges, 2)
	require.Len(t, outs[0].Skipped, 1)
	assert.True(t, strings.Contains(outs[0].Skipped[0], "timeout"))

	data, err := json.Marshal(outs)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"root":{"from_table":"dwd_git_commits"`)
}

func TestFormatMS(t *testing.T) {
	assert.Equal(t, "999ms", formatMS(999))
	assert.Equal(t, "1.50s", formatMS(1500))
}
