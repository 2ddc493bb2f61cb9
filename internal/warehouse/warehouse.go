package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/leapstack-labs/lineagebench/internal/pipeline"
	"github.com/leapstack-labs/lineagebench/internal/synth"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// Options configures a Warehouse.
type Options struct {
	Schema          string
	DailyJiraIssues int
	DailyGitCommits int
	ProjectIDs      synth.Range
	Edges           EdgeStoreOptions
	Logger          *slog.Logger
}

// Warehouse runs the layered transforms against one adapter.
type Warehouse struct {
	db     core.Adapter
	sb     sq.StatementBuilderType
	gen    *synth.Generator
	edges  *EdgeStore
	opts   Options
	logger *slog.Logger
}

// New creates a warehouse. The generator supplies every synthetic value.
func New(db core.Adapter, gen *synth.Generator, opts Options) *Warehouse {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	edgeOpts := opts.Edges
	edgeOpts.Schema = opts.Schema
	if edgeOpts.Logger == nil {
		edgeOpts.Logger = logger
	}

	return &Warehouse{
		db:     db,
		sb:     builderFor(db),
		gen:    gen,
		edges:  NewEdgeStore(db, edgeOpts),
		opts:   opts,
		logger: logger,
	}
}

// Edges returns the lineage log.
func (w *Warehouse) Edges() *EdgeStore {
	return w.edges
}

func (w *Warehouse) table(name string) string {
	return qualify(w.opts.Schema, name)
}

// QualifiedTables returns every table name as passed to the adapter.
func (w *Warehouse) QualifiedTables() []string {
	out := make([]string, len(Tables))
	for i, t := range Tables {
		out[i] = w.table(t)
	}
	return out
}

// TableStats reports the size of every table.
func (w *Warehouse) TableStats(ctx context.Context) ([]core.TableStats, error) {
	return w.db.TableStats(ctx, w.QualifiedTables()...)
}

// Stages returns the per-day transforms wired by their table dependencies.
func (w *Warehouse) Stages() []pipeline.Stage {
	return []pipeline.Stage{
		{Name: TableODSJiraIssues, Run: w.LoadJiraIssues},
		{Name: TableODSGitCommits, Run: w.LoadGitCommits},
		{Name: TableDWDJiraIssues, DependsOn: []string{TableODSJiraIssues}, Run: w.BuildJiraIssues},
		{Name: TableDWDGitCommits, DependsOn: []string{TableODSGitCommits}, Run: w.BuildGitCommits},
		{Name: TableDWMBugs, DependsOn: []string{TableDWDJiraIssues}, Run: w.BuildBugs},
		{Name: TableDWSProjects, DependsOn: []string{TableDWDGitCommits, TableDWDJiraIssues, TableDWMBugs}, Run: w.BuildProjects},
	}
}

// window is the half-open unix-second range of one simulated day.
type window struct {
	day   time.Time
	start int64
	end   int64
}

func dayWindow(day time.Time) window {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return window{day: d, start: d.Unix(), end: d.AddDate(0, 0, 1).Unix()}
}

func (w window) contains(col string) sq.And {
	return sq.And{sq.GtOrEq{col: w.start}, sq.Lt{col: w.end}}
}

func (w window) date() string {
	return w.day.Format(time.DateOnly)
}

func (w *Warehouse) query(ctx context.Context, b sq.SelectBuilder) (*core.Rows, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building query: %w", err)
	}
	return w.db.Query(ctx, sql, args...)
}

func (w *Warehouse) insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	return insertRows(ctx, w.db, w.sb, w.table(table), columns, rows)
}
