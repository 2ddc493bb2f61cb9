package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/lineagebench/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "custom port",
			config: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "analytics",
				Username: "analyst",
			},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=disable user=analyst",
		},
		{
			name: "with schema",
			config: adapter.Config{
				Database: "bench",
				Schema:   "lineage",
			},
			expected: "host=localhost port=5432 dbname=bench sslmode=disable search_path=lineage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := buildPostgresDSN(tt.config)
			assert.Equal(t, tt.expected, dsn)
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(nil)

	assert.NotNil(t, adp, "New() should return non-nil adapter")
	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.False(t, adp.IsConnected(), "should not be connected initially")
	assert.Equal(t, "postgres", adp.DialectName(), "dialect name should be postgres")

	// Verify interface compliance
	var _ adapter.Adapter = (*Adapter)(nil)
	var _ adapter.Adapter = adp
}

func TestAdapter_NotConnected(t *testing.T) {
	tests := []struct {
		name      string
		operation func(ctx context.Context, adp *Adapter) error
		errMsg    string
	}{
		{
			name: "exec without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				return adp.Exec(ctx, "SELECT 1")
			},
			errMsg: "not established",
		},
		{
			name: "query without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.Query(ctx, "SELECT 1")
				return err
			},
			errMsg: "not established",
		},
		{
			name: "table stats without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.TableStats(ctx, "edges")
				return err
			},
			errMsg: "not established",
		},
		{
			name: "copy rows without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.CopyRows(ctx, "edges", []string{"id"}, [][]any{{"x"}})
				return err
			},
			errMsg: "not established",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			adp := New(nil)

			err := tt.operation(ctx, adp)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"), "postgres adapter should be registered")

	factory, ok := adapter.Get("postgres")
	require.True(t, ok, "should be able to get postgres factory")

	adp := factory(nil)
	assert.NotNil(t, adp)

	pg, ok := adp.(*Adapter)
	assert.True(t, ok, "factory should return *Adapter")
	assert.NotNil(t, pg)
	assert.Equal(t, "postgres", pg.DialectName())
}

func TestAdapter_Close(t *testing.T) {
	// Close should not error even without connection
	adp := New(nil)
	assert.NoError(t, adp.Close())
}

func TestAdapter_TableStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := New(nil)
	adp.DB = db
	adp.Cfg = adapter.Config{Schema: "lineage"}

	mock.ExpectQuery(`pg_total_relation_size`).
		WithArgs("lineage", "edges").
		WillReturnRows(sqlmock.NewRows([]string{"size", "relpages"}).AddRow(int64(81920), int64(10)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "lineage"\."edges"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(500)))
	mock.ExpectQuery(`pg_total_relation_size`).
		WithArgs("public", "dws_commit").
		WillReturnRows(sqlmock.NewRows([]string{"size", "relpages"}).AddRow(int64(8192), int64(1)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "public"\."dws_commit"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	stats, err := adp.TableStats(context.Background(), "edges", "public.dws_commit")
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "lineage", stats[0].Database)
	assert.Equal(t, int64(81920), stats[0].TotalBytes)
	assert.Equal(t, int64(10), stats[0].PartCount)
	assert.Equal(t, int64(500), stats[0].TotalRows)
	assert.Equal(t, "dws_commit", stats[1].Table)
	assert.Equal(t, int64(3), stats[1].TotalRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_TableStats_MissingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := New(nil)
	adp.DB = db

	mock.ExpectQuery(`pg_total_relation_size`).
		WithArgs("public", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"size", "relpages"}))

	_, err = adp.TableStats(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public.missing")
}
