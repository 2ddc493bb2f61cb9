package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/avast/retry-go"
	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	"golang.org/x/time/rate"
)

// EdgeStoreOptions configures the lineage log.
type EdgeStoreOptions struct {
	Schema string

	// LookupsPerSecond throttles FetchProducers (0 = unlimited).
	LookupsPerSecond float64

	// RetryAttempts is the total number of tries per lookup (minimum 1).
	RetryAttempts uint

	// RetryDelay is the base delay between tries.
	RetryDelay time.Duration

	Logger *slog.Logger
}

// EdgeStore appends lineage edges and answers producer lookups.
type EdgeStore struct {
	db       core.Adapter
	sb       sq.StatementBuilderType
	table    string
	limiter  *rate.Limiter
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
	lookups  atomic.Int64
}

// NewEdgeStore creates an edge store over the given adapter.
func NewEdgeStore(db core.Adapter, opts EdgeStoreOptions) *EdgeStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	delay := opts.RetryDelay
	if delay == 0 {
		delay = 50 * time.Millisecond
	}

	s := &EdgeStore{
		db:       db,
		sb:       builderFor(db),
		table:    qualify(opts.Schema, TableLineage),
		attempts: attempts,
		delay:    delay,
		logger:   logger,
	}
	if opts.LookupsPerSecond > 0 {
		burst := max(1, int(opts.LookupsPerSecond))
		s.limiter = rate.NewLimiter(rate.Limit(opts.LookupsPerSecond), burst)
	}
	return s
}

// Lookups returns the number of FetchProducers queries issued so far,
// counting retries.
func (s *EdgeStore) Lookups() int64 {
	return s.lookups.Load()
}

// Append writes edges to the log.
func (s *EdgeStore) Append(ctx context.Context, edges []lineage.Edge) error {
	rows := make([][]any, 0, len(edges))
	for _, e := range edges {
		if e.ToID == "" {
			return fmt.Errorf("edge into %s has empty to_id: %w", e.ToTable, lineage.ErrInvalidInput)
		}
		rows = append(rows, []any{
			e.FromTable,
			encodeList(e.FromIDs),
			e.ToTable,
			e.ToID,
			encodeList(e.ToFacets),
			e.CreatedAt.Unix(),
		})
	}
	return insertRows(ctx, s.db, s.sb, s.table, edgeColumns, rows)
}

// FetchProducers returns every edge whose destination is one of ids in table.
// Failures are retried up to the configured attempts and the last error is
// returned. Context errors are never retried.
func (s *EdgeStore) FetchProducers(ctx context.Context, table string, ids []string) ([]lineage.Edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := s.sb.Select(edgeColumns...).
		From(s.table).
		Where(sq.Eq{"to_table": table, "to_id": ids}).
		OrderBy("to_id", "from_table", "from_ids")

	var edges []lineage.Edge
	err := retry.Do(
		func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			s.lookups.Add(1)

			var err error
			edges, err = s.queryEdges(ctx, query)
			return err
		},
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("lineage lookup failed",
				slog.String("table", table),
				slog.Int("ids", len(ids)),
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// EdgesInto lists edges written into table with created_at in [since, until),
// oldest first, at most limit edges (0 = all).
func (s *EdgeStore) EdgesInto(ctx context.Context, table string, since, until time.Time, limit int) ([]lineage.Edge, error) {
	query := s.sb.Select(edgeColumns...).
		From(s.table).
		Where(sq.Eq{"to_table": table}).
		Where(sq.GtOrEq{"created_at": since.Unix()}).
		Where(sq.Lt{"created_at": until.Unix()}).
		OrderBy("created_at", "to_id", "from_table")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return s.queryEdges(ctx, query)
}

func (s *EdgeStore) queryEdges(ctx context.Context, query sq.SelectBuilder) ([]lineage.Edge, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building lineage query: %w", err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var edges []lineage.Edge
	for rows.Next() {
		var (
			e              lineage.Edge
			fromIDs, facet string
			createdAt      int64
		)
		if err := rows.Scan(&e.FromTable, &fromIDs, &e.ToTable, &e.ToID, &facet, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		if e.FromIDs, err = decodeList(fromIDs); err != nil {
			return nil, err
		}
		if e.ToFacets, err = decodeList(facet); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lineage edges: %w", err)
	}
	return edges, nil
}

var _ lineage.Fetcher = (*EdgeStore)(nil)
