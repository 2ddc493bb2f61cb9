// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lineagebench/internal/state"
	"github.com/leapstack-labs/lineagebench/internal/testutil"
	"github.com/leapstack-labs/lineagebench/internal/ui/notifier"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// TestDay is a helper to record benchmark days with minimal boilerplate.
type TestDay struct {
	Date       string
	DurationMS int64
	Rows       map[string]int64
}

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Store    *state.SQLiteStore
	Notifier *notifier.Notifier
	t        *testing.T
}

// SetupTestFixture creates a file-backed state store and a notifier.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "state.db")))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })

	return &TestFixture{Store: store, Notifier: notifier.New(), t: t}
}

// AddRun records a run started at startedAt with the given days.
func (f *TestFixture) AddRun(startedAt time.Time, status core.RunStatus, days ...TestDay) *core.Run {
	f.t.Helper()
	ctx := context.Background()

	run := &core.Run{
		StartedAt: startedAt,
		Args: core.RunArgs{
			StartDate:       "2024-01-01",
			EndDate:         "2024-01-02",
			DailyJiraIssues: 10,
			DailyGitCommits: 10,
			ProjectIDs:      [2]int{1, 10},
			IssueIDs:        [2]int{1, 99},
			Seed:            42,
			Target:          "duckdb",
			ResolveSamples:  3,
		},
	}
	require.NoError(f.t, f.Store.CreateRun(ctx, run))

	for _, d := range days {
		f.RecordDay(run.ID, d)
	}
	if status != core.RunStatusRunning {
		require.NoError(f.t, f.Store.CompleteRun(ctx, run.ID, status, ""))
	}
	return run
}

// RecordDay records one more day of a run.
func (f *TestFixture) RecordDay(runID string, d TestDay) {
	f.t.Helper()
	timing := core.DayTiming{Date: d.Date, DurationMS: d.DurationMS}
	for _, table := range sortedKeys(d.Rows) {
		timing.TableStats = append(timing.TableStats, core.TableStats{Database: "main", Table: table, TotalRows: d.Rows[table]})
	}
	require.NoError(f.t, f.Store.RecordDay(context.Background(), runID, timing))
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// RequestWithPathParam adds a chi URL parameter to the request.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
