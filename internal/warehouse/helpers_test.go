package warehouse

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/lineagebench/internal/synth"
	"github.com/leapstack-labs/lineagebench/internal/testutil"
	"github.com/leapstack-labs/lineagebench/pkg/adapter"
	"github.com/leapstack-labs/lineagebench/pkg/adapters/duckdb"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	"github.com/stretchr/testify/require"
)

// sqlAdapter is a minimal adapter over an arbitrary *sql.DB, used with sqlmock.
type sqlAdapter struct {
	adapter.BaseSQLAdapter
	dialect string
}

func (a *sqlAdapter) Connect(context.Context, core.AdapterConfig) error { return nil }

func (a *sqlAdapter) TableStats(context.Context, ...string) ([]core.TableStats, error) {
	return nil, nil
}

func (a *sqlAdapter) DialectName() string { return a.dialect }

func newMockAdapter(t *testing.T, dialect string) (*sqlAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &sqlAdapter{BaseSQLAdapter: adapter.BaseSQLAdapter{DB: db}, dialect: dialect}, mock
}

func newDuckDB(t *testing.T) *duckdb.Adapter {
	t.Helper()
	adp := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func testOptions(t *testing.T) Options {
	return Options{
		DailyJiraIssues: 30,
		DailyGitCommits: 20,
		ProjectIDs:      synth.Range{Min: 1, Max: 4},
		Logger:          testutil.NewTestLogger(t),
	}
}

func newTestWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	gen := synth.New(7, synth.Range{Min: 1, Max: 4}, synth.Range{Min: 1, Max: 99})
	w := New(newDuckDB(t), gen, testOptions(t))
	require.NoError(t, w.CreateTables(context.Background()))
	return w
}

func countRows(t *testing.T, w *Warehouse, table string, where string, args ...any) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + w.table(table)
	if where != "" {
		query += " WHERE " + where
	}
	rows, err := w.db.Query(context.Background(), query, args...)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var n int
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&n))
	return n
}
