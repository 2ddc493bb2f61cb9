package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

var runColumns = []string{"id", "status", "args", "started_at", "completed_at", "error"}

// CreateRun records the start of a run. Missing ID, status and start time are
// filled in on run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *core.Run) error {
	if s.db == nil {
		return errNotOpened
	}

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = core.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	args, err := json.Marshal(run.Args)
	if err != nil {
		return fmt.Errorf("failed to encode run args: %w", err)
	}

	s.logger.Debug("creating run", slog.String("id", run.ID))

	if err := s.exec(ctx, s.sb.Insert("bench_runs").
		Columns("id", "status", "args", "started_at").
		Values(run.ID, string(run.Status), string(args), run.StartedAt.UnixMilli())); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// RecordDay appends one day of measurements to a run. Recording the same date
// twice replaces the earlier measurement.
func (s *SQLiteStore) RecordDay(ctx context.Context, runID string, day core.DayTiming) (err error) {
	if s.db == nil {
		return errNotOpened
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmts := []sq.Sqlizer{
		s.sb.Delete("bench_days").Where(sq.Eq{"run_id": runID, "date": day.Date}),
		s.sb.Insert("bench_days").
			Columns("run_id", "date", "duration_ms", "lineage_ms", "lineage_edges").
			Values(runID, day.Date, day.DurationMS, day.LineageMS, day.LineageEdges),
	}
	if len(day.TableStats) > 0 {
		ins := s.sb.Insert("bench_table_stats").
			Columns("run_id", "date", "db_name", "table_name", "total_rows", "total_bytes", "part_count")
		for _, ts := range day.TableStats {
			ins = ins.Values(runID, day.Date, ts.Database, ts.Table, ts.TotalRows, ts.TotalBytes, ts.PartCount)
		}
		stmts = append(stmts, ins)
	}

	for _, stmt := range stmts {
		query, args, err := stmt.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build statement: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to record day %s: %w", day.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit day %s: %w", day.Date, err)
	}
	return nil
}

// CompleteRun marks a run as completed with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	var errVal any
	if errMsg != "" {
		errVal = errMsg
	}

	query, args, err := s.sb.Update("bench_runs").
		Set("status", string(status)).
		Set("completed_at", time.Now().UTC().UnixMilli()).
		Set("error", errVal).
		Where(sq.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build statement: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun retrieves a run with all its timings.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	runs, err := s.queryRuns(ctx, s.sb.Select(runColumns...).From("bench_runs").Where(sq.Eq{"id": runID}))
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run := runs[0]
	if run.Timings, err = s.timings(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// GetLatestRun retrieves the most recently started run with its timings.
// It returns nil without error when no run exists.
func (s *SQLiteStore) GetLatestRun(ctx context.Context) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	runs, err := s.queryRuns(ctx, s.latestRuns().Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}

	run := runs[0]
	if run.Timings, err = s.timings(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit, without
// timings. A non-positive limit lists every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	q := s.latestRuns()
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	runs, err := s.queryRuns(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) latestRuns() sq.SelectBuilder {
	return s.sb.Select(runColumns...).From("bench_runs").OrderBy("started_at DESC", "rowid DESC")
}

func (s *SQLiteStore) exec(ctx context.Context, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) queryRuns(ctx context.Context, b sq.SelectBuilder) ([]*core.Run, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		var (
			run         core.Run
			status      string
			args        string
			startedAt   int64
			completedAt sql.NullInt64
			errMsg      sql.NullString
		)
		if err := rows.Scan(&run.ID, &status, &args, &startedAt, &completedAt, &errMsg); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(args), &run.Args); err != nil {
			return nil, fmt.Errorf("run %s has malformed args: %w", run.ID, err)
		}
		run.Status = core.RunStatus(status)
		run.StartedAt = time.UnixMilli(startedAt).UTC()
		if completedAt.Valid {
			t := time.UnixMilli(completedAt.Int64).UTC()
			run.CompletedAt = &t
		}
		run.Error = errMsg.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// timings loads every recorded day of a run in date order.
func (s *SQLiteStore) timings(ctx context.Context, runID string) ([]core.DayTiming, error) {
	days, err := s.queryDays(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timings: %w", err)
	}
	if len(days) == 0 {
		return []core.DayTiming{}, nil
	}

	index := make(map[string]int, len(days))
	for i, d := range days {
		index[d.Date] = i
	}

	query, args, err := s.sb.Select("date", "db_name", "table_name", "total_rows", "total_bytes", "part_count").
		From("bench_table_stats").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("date", "rowid").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load table stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			date string
			ts   core.TableStats
		)
		if err := rows.Scan(&date, &ts.Database, &ts.Table, &ts.TotalRows, &ts.TotalBytes, &ts.PartCount); err != nil {
			return nil, fmt.Errorf("failed to scan table stats: %w", err)
		}
		i, ok := index[date]
		if !ok {
			return nil, errors.New("table stats recorded for unknown day " + date)
		}
		days[i].TableStats = append(days[i].TableStats, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

func (s *SQLiteStore) queryDays(ctx context.Context, runID string) ([]core.DayTiming, error) {
	query, args, err := s.sb.Select("date", "duration_ms", "lineage_ms", "lineage_edges").
		From("bench_days").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var days []core.DayTiming
	for rows.Next() {
		d := core.DayTiming{TableStats: []core.TableStats{}}
		if err := rows.Scan(&d.Date, &d.DurationMS, &d.LineageMS, &d.LineageEdges); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
