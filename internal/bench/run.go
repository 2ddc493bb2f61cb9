package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/internal/warehouse"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// Run simulates every configured day, recording each one as it completes.
// The returned run is reloaded from the store and is non-nil whenever the run
// was created, including on failure.
func (e *Engine) Run(ctx context.Context) (*core.Run, error) {
	start, end, err := e.bench.Dates()
	if err != nil {
		return nil, err
	}

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	run := &core.Run{Args: e.Args()}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Info("starting run",
		slog.String("run_id", run.ID),
		slog.String("start", e.bench.StartDate),
		slog.String("end", e.bench.EndDate),
		slog.Int64("seed", run.Args.Seed))

	runErr := e.runDays(ctx, run.ID, Dates(start, end))

	// The run's own context may be gone; completion still has to land.
	done := context.WithoutCancel(ctx)
	switch {
	case runErr == nil:
		e.logger.Info("run completed", slog.String("run_id", run.ID))
		err = e.store.CompleteRun(done, run.ID, core.RunStatusCompleted, "")
	case errors.Is(runErr, context.Canceled):
		e.logger.Info("run cancelled", slog.String("run_id", run.ID))
		err = e.store.CompleteRun(done, run.ID, core.RunStatusCancelled, runErr.Error())
	default:
		e.logger.Info("run failed", slog.String("run_id", run.ID), slog.String("error", runErr.Error()))
		err = e.store.CompleteRun(done, run.ID, core.RunStatusFailed, runErr.Error())
	}
	if err != nil {
		return run, errors.Join(runErr, err)
	}

	loaded, err := e.store.GetRun(done, run.ID)
	if err != nil {
		return run, errors.Join(runErr, err)
	}
	return loaded, runErr
}

func (e *Engine) runDays(ctx context.Context, runID string, days []time.Time) error {
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return err
		}

		timing, err := e.RunDay(ctx, day)
		if err != nil {
			return fmt.Errorf("day %s: %w", day.Format(time.DateOnly), err)
		}
		if err := e.store.RecordDay(ctx, runID, timing); err != nil {
			return err
		}

		e.logger.Info("day recorded",
			slog.String("date", timing.Date),
			slog.Int64("duration_ms", timing.DurationMS),
			slog.Int64("lineage_ms", timing.LineageMS),
			slog.Int("lineage_edges", timing.LineageEdges))

		if e.onDay != nil {
			e.onDay(runID, timing)
		}
	}
	return nil
}

// RunDay executes the pipeline for one day and measures it. Table stats are
// taken after the pipeline and before lineage sampling.
func (e *Engine) RunDay(ctx context.Context, day time.Time) (core.DayTiming, error) {
	timing := core.DayTiming{Date: day.Format(time.DateOnly)}

	if err := e.ensureDBConnected(ctx); err != nil {
		return timing, err
	}

	started := time.Now()
	if _, err := e.pipe.Run(ctx, day); err != nil {
		return timing, err
	}
	timing.DurationMS = time.Since(started).Milliseconds()

	stats, err := e.wh.TableStats(ctx)
	if err != nil {
		return timing, fmt.Errorf("failed to collect table stats: %w", err)
	}
	timing.TableStats = stats

	if e.bench.ResolveSamples > 0 {
		started = time.Now()
		results, err := e.ResolveDay(ctx, day, e.bench.ResolveSamples)
		if err != nil {
			return timing, err
		}
		timing.LineageMS = time.Since(started).Milliseconds()
		for _, res := range results {
			timing.LineageEdges += len(res.Edges)
		}
	}
	return timing, nil
}

// ResolveDay resolves the ancestry of up to limit dws_projects edges written
// on day (0 = all of them).
func (e *Engine) ResolveDay(ctx context.Context, day time.Time, limit int) ([]*lineage.Result, error) {
	wh, err := e.Warehouse(ctx)
	if err != nil {
		return nil, err
	}

	roots, err := wh.Edges().EdgesInto(ctx, warehouse.TableDWSProjects, day, day.AddDate(0, 0, 1), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list lineage roots: %w", err)
	}
	return e.resolveAll(ctx, wh, roots)
}

// ResolveRecord resolves the ancestry of one stored record: every edge that
// produced id in table becomes a root.
func (e *Engine) ResolveRecord(ctx context.Context, table, id string) ([]*lineage.Result, error) {
	if table == "" || id == "" {
		return nil, fmt.Errorf("table and id are required: %w", lineage.ErrInvalidInput)
	}

	wh, err := e.Warehouse(ctx)
	if err != nil {
		return nil, err
	}

	roots, err := wh.Edges().FetchProducers(ctx, table, []string{id})
	if err != nil {
		return nil, fmt.Errorf("failed to find edges producing %s %s: %w", table, id, err)
	}
	return e.resolveAll(ctx, wh, roots)
}

func (e *Engine) resolveAll(ctx context.Context, wh *warehouse.Warehouse, roots []lineage.Edge) ([]*lineage.Result, error) {
	resolver := lineage.NewResolver(wh.Edges(), e.resolver)

	results := make([]*lineage.Result, 0, len(roots))
	for _, root := range roots {
		res, err := e.resolveOne(ctx, resolver, root)
		if err != nil {
			return results, fmt.Errorf("failed to resolve %s %s: %w", root.ToTable, root.ToID, err)
		}
		for _, skipped := range res.Skipped {
			e.logger.Warn("lineage lookup skipped", slog.String("error", skipped.Error()))
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) resolveOne(ctx context.Context, resolver *lineage.Resolver, root lineage.Edge) (*lineage.Result, error) {
	if e.lineage.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.lineage.Timeout)
		defer cancel()
	}
	return resolver.Resolve(ctx, root)
}
