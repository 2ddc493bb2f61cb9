package core

import (
	"context"
	"database/sql"
)

// Adapter defines the interface that all warehouse adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// TableStats reports size information for the given tables.
	TableStats(ctx context.Context, tables ...string) ([]TableStats, error)

	// DialectName returns the SQL dialect name (e.g. "duckdb", "postgres").
	DialectName() string
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// TableStats describes the size of one table at a point in time.
type TableStats struct {
	Database   string `json:"database"`
	Table      string `json:"table"`
	TotalRows  int64  `json:"total_rows"`
	TotalBytes int64  `json:"total_bytes"`
	// PartCount is the number of storage units backing the table
	// (row groups for DuckDB, pages for Postgres).
	PartCount int64 `json:"part_count"`
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}

// BulkLoader is implemented by adapters with a native bulk ingest path.
// Values in rows must line up with columns.
type BulkLoader interface {
	CopyRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}
