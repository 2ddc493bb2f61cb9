// Package duckdb provides a DuckDB warehouse adapter for lineagebench.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/lineagebench/pkg/adapters/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/lineagebench/pkg/adapter"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	"github.com/marcboeker/go-duckdb"
)

// DefaultSchema is used when neither the table name nor the target names one.
const DefaultSchema = "main"

// blockSize is DuckDB's default storage block size in bytes.
const blockSize = 262144

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	if err := a.applyParams(ctx, params); err != nil {
		_ = db.Close()
		a.DB = nil
		return err
	}
	if cfg.Schema != "" && cfg.Schema != DefaultSchema {
		if err := a.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+adapter.QuoteIdent(cfg.Schema)); err != nil {
			_ = db.Close()
			a.DB = nil
			return err
		}
	}
	return nil
}

func (a *Adapter) applyParams(ctx context.Context, p *Params) error {
	for _, ext := range p.Extensions {
		a.Logger.Debug("loading duckdb extension", slog.String("extension", ext))
		if err := a.Exec(ctx, "INSTALL "+ext); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if err := a.Exec(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	for name, value := range p.Settings {
		stmt := fmt.Sprintf("SET %s = %s", name, quoteLiteral(value))
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", name, err)
		}
	}
	return nil
}

// TableStats reports row counts and storage layout for the given tables.
// Row group and block figures come from pragma_storage_info and are
// best-effort: an in-memory database reports no persistent blocks.
func (a *Adapter) TableStats(ctx context.Context, tables ...string) ([]core.TableStats, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}

	defaultSchema := a.defaultSchema()

	stats := make([]core.TableStats, 0, len(tables))
	for _, table := range tables {
		schema, name := adapter.ParseQualifiedName(table, defaultSchema)
		rows, err := a.CountRows(ctx, schema, name)
		if err != nil {
			return nil, err
		}
		st := core.TableStats{Database: schema, Table: name, TotalRows: rows}

		query := fmt.Sprintf(
			"SELECT COUNT(DISTINCT row_group_id), COUNT(DISTINCT CASE WHEN persistent THEN block_id END) FROM pragma_storage_info(%s)",
			quoteLiteral(schema+"."+name),
		)
		var blocks int64
		if err := a.DB.QueryRowContext(ctx, query).Scan(&st.PartCount, &blocks); err != nil {
			a.Logger.Debug("storage info unavailable", slog.String("table", table), slog.String("error", err.Error()))
		} else {
			st.TotalBytes = blocks * blockSize
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func (a *Adapter) defaultSchema() string {
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return DefaultSchema
}

// CopyRows bulk-loads rows through the DuckDB appender. The appender writes
// every column of the table in order, so columns must list them all.
func (a *Adapter) CopyRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if a.DB == nil {
		return 0, adapter.ErrNotConnected
	}
	if len(rows) == 0 {
		return 0, nil
	}

	schema, name := adapter.ParseQualifiedName(table, a.defaultSchema())

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var appended int64
	err = conn.Raw(func(driverConn any) error {
		app, err := duckdb.NewAppenderFromConn(driverConn.(driver.Conn), schema, name)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if len(row) != len(columns) {
				_ = app.Close()
				return fmt.Errorf("row has %d values, want %d", len(row), len(columns))
			}
			vals := make([]driver.Value, len(row))
			for i, v := range row {
				vals[i] = v
			}
			if err := app.AppendRow(vals...); err != nil {
				_ = app.Close()
				return err
			}
			appended++
		}
		return app.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append into %s.%s: %w", schema, name, err)
	}
	return appended, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Ensure Adapter implements the adapter interfaces
var (
	_ adapter.Adapter = (*Adapter)(nil)
	_ core.BulkLoader = (*Adapter)(nil)
)
