// Package postgres provides a PostgreSQL warehouse adapter for lineagebench.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/lineagebench/pkg/adapters/postgres"
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/lineagebench/pkg/adapter"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// DefaultSchema is used when neither the table name nor the target names one.
const DefaultSchema = "public"

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	if cfg.Schema != "" && cfg.Schema != DefaultSchema {
		if err := a.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+adapter.QuoteIdent(cfg.Schema)); err != nil {
			_ = db.Close()
			a.DB = nil
			return err
		}
	}
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if cfg.Schema != "" {
		dsn += fmt.Sprintf(" search_path=%s", cfg.Schema)
	}

	return dsn
}

func (a *Adapter) defaultSchema() string {
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return DefaultSchema
}

const tableSizeQuery = `
	SELECT pg_total_relation_size(c.oid), c.relpages
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relname = $2`

// TableStats reports row counts, on-disk size, and page counts.
// relpages is refreshed by VACUUM/ANALYZE, so it can lag the row count.
func (a *Adapter) TableStats(ctx context.Context, tables ...string) ([]core.TableStats, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}

	stats := make([]core.TableStats, 0, len(tables))
	for _, table := range tables {
		schema, name := adapter.ParseQualifiedName(table, a.defaultSchema())

		st := core.TableStats{Database: schema, Table: name}
		err := a.DB.QueryRowContext(ctx, tableSizeQuery, schema, name).Scan(&st.TotalBytes, &st.PartCount)
		if err != nil {
			return nil, fmt.Errorf("failed to read size of %s.%s: %w", schema, name, err)
		}
		if st.TotalRows, err = a.CountRows(ctx, schema, name); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// CopyRows bulk-loads rows with the COPY protocol.
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

	var copied int64
	err = conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()
		n, err := pgxConn.CopyFrom(ctx, pgx.Identifier{schema, name}, columns, pgx.CopyFromRows(rows))
		copied = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to copy into %s.%s: %w", schema, name, err)
	}
	return copied, nil
}

// Ensure Adapter implements the adapter interfaces
var (
	_ adapter.Adapter = (*Adapter)(nil)
	_ core.BulkLoader = (*Adapter)(nil)
)
