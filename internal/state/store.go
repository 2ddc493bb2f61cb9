// Package state persists benchmark runs in SQLite.
//
// A run records the arguments it was started with and one row per simulated
// day: the pipeline duration, the lineage resolution timing, and the size of
// every warehouse table after that day.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

var errNotOpened = errors.New("database not opened")

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
		logger: logger,
	}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !memory {
		pragmas += "&_pragma=journal_mode(WAL)"
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	db, err := sql.Open("sqlite", path+sep+pragmas)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if memory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("state store opened", slog.String("path", path))
	return nil
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema initializes the database schema by running migrations.
func (s *SQLiteStore) InitSchema() error {
	return s.Migrate()
}

var _ core.Store = (*SQLiteStore)(nil)
