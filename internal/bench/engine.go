// Package bench drives the daily benchmark loop.
// It owns the warehouse connection and the result store, runs the layered
// pipeline once per simulated day, and times lineage resolution against the
// edges that day produced.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/lineagebench/internal/config"
	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/internal/pipeline"
	"github.com/leapstack-labs/lineagebench/internal/state"
	"github.com/leapstack-labs/lineagebench/internal/synth"
	"github.com/leapstack-labs/lineagebench/internal/warehouse"
	"github.com/leapstack-labs/lineagebench/pkg/adapter"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// DayHook is called after a day has been recorded.
type DayHook func(runID string, day core.DayTiming)

// Config holds engine configuration.
type Config struct {
	// Target is the warehouse connection.
	Target core.AdapterConfig
	// StatePath is the path to the SQLite result store.
	StatePath string

	Bench   config.BenchConfig
	Lineage config.LineageConfig

	// OnDay is notified after every recorded day (optional).
	OnDay DayHook

	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine runs benchmark days against one warehouse.
type Engine struct {
	// Database adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	wh       *warehouse.Warehouse
	pipe     *pipeline.Pipeline
	gen      *synth.Generator
	store    *state.SQLiteStore
	resolver lineage.Options

	bench   config.BenchConfig
	lineage config.LineageConfig
	onDay   DayHook
	logger  *slog.Logger
}

// New validates cfg and opens the result store. The warehouse is connected
// on first use.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := cfg.Bench.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Lineage.Validate(); err != nil {
		return nil, err
	}
	resolverOpts, err := cfg.Lineage.ResolverOptions()
	if err != nil {
		return nil, err
	}
	resolverOpts.Logger = logger

	dbConfig := cfg.Target
	if dbConfig.Type == "" {
		dbConfig.Type = "duckdb"
	}
	if dbConfig.Path == "" && dbConfig.Type == "duckdb" {
		dbConfig.Path = dbConfig.Database
	}

	logger.Debug("initializing bench engine", "adapter_type", dbConfig.Type, "state_path", cfg.StatePath)

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	b := cfg.Bench
	gen := synth.New(b.Seed,
		synth.Range{Min: int64(b.ProjectIDs[0]), Max: int64(b.ProjectIDs[1])},
		synth.Range{Min: int64(b.IssueIDs[0]), Max: int64(b.IssueIDs[1])})

	return &Engine{
		dbConfig: dbConfig,
		gen:      gen,
		store:    store,
		resolver: resolverOpts,
		bench:    b,
		lineage:  cfg.Lineage,
		onDay:    cfg.OnDay,
		logger:   logger,
	}, nil
}

// ensureDBConnected lazily connects to the warehouse and creates its tables.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to warehouse", "adapter_type", e.dbConfig.Type)

	db, err := adapter.Open(ctx, e.dbConfig, e.logger)
	if err != nil {
		return err
	}

	wh := warehouse.New(db, e.gen, warehouse.Options{
		Schema:          e.dbConfig.Schema,
		DailyJiraIssues: e.bench.DailyJiraIssues,
		DailyGitCommits: e.bench.DailyGitCommits,
		ProjectIDs:      synth.Range{Min: int64(e.bench.ProjectIDs[0]), Max: int64(e.bench.ProjectIDs[1])},
		Edges: warehouse.EdgeStoreOptions{
			LookupsPerSecond: e.lineage.LookupsPerSecond,
			RetryAttempts:    e.lineage.RetryAttempts,
		},
		Logger: e.logger,
	})
	if err := wh.CreateTables(ctx); err != nil {
		_ = db.Close()
		return err
	}

	pipe, err := pipeline.New(wh.Stages(), pipeline.WithLogger(e.logger))
	if err != nil {
		_ = db.Close()
		return err
	}

	e.db = db
	e.wh = wh
	e.pipe = pipe
	e.dbConnected = true

	e.logger.Debug("warehouse connected", "dialect", db.DialectName())
	return nil
}

// Warehouse returns the connected warehouse.
func (e *Engine) Warehouse(ctx context.Context) (*warehouse.Warehouse, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.wh, nil
}

// Store returns the result store.
func (e *Engine) Store() *state.SQLiteStore {
	return e.store
}

// Seed returns the effective generator seed.
func (e *Engine) Seed() int64 {
	return e.gen.Seed()
}

// Args returns the arguments recorded with a run.
func (e *Engine) Args() core.RunArgs {
	return core.RunArgs{
		StartDate:       e.bench.StartDate,
		EndDate:         e.bench.EndDate,
		DailyJiraIssues: e.bench.DailyJiraIssues,
		DailyGitCommits: e.bench.DailyGitCommits,
		ProjectIDs:      [2]int{e.bench.ProjectIDs[0], e.bench.ProjectIDs[1]},
		IssueIDs:        [2]int{e.bench.IssueIDs[0], e.bench.IssueIDs[1]},
		Seed:            e.gen.Seed(),
		Target:          e.dbConfig.Type,
		ResolveSamples:  e.bench.ResolveSamples,
	}
}

// Clean removes every row from the warehouse.
func (e *Engine) Clean(ctx context.Context) error {
	wh, err := e.Warehouse(ctx)
	if err != nil {
		return err
	}
	return wh.Clean(ctx)
}

// Close releases the warehouse connection and the result store.
func (e *Engine) Close() error {
	e.logger.Debug("closing bench engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// Dates lists every simulated day from start to end inclusive.
func Dates(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
