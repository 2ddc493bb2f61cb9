package lineage

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Edge records that the facets of one destination record were derived from a
// set of source records.
type Edge struct {
	FromTable string    `json:"from_table"`
	FromIDs   []string  `json:"from_ids"`
	ToTable   string    `json:"to_table"`
	ToID      string    `json:"to_id"`
	ToFacets  []string  `json:"to_facets"`
	CreatedAt time.Time `json:"created_at"`
}

// Key identifies the source side of an edge. Two edges with equal keys expand
// to the same producers.
type Key struct {
	Table string
	IDs   string // sorted distinct ids joined with keySep
}

// keySep cannot appear in a stored id, so distinct id sets never share a Key.
const keySep = "\x00"

func (k Key) String() string {
	return k.Table + "_" + strings.ReplaceAll(k.IDs, keySep, ",")
}

// SourceKey returns the deduplication key of the edge's source side.
func (e Edge) SourceKey() Key {
	return Key{Table: e.FromTable, IDs: strings.Join(e.SourceIDs(), keySep)}
}

// SourceIDs returns the edge's source ids sorted and without duplicates.
func (e Edge) SourceIDs() []string {
	return slices.Compact(slices.Sorted(slices.Values(e.FromIDs)))
}

// IsTerminal reports whether the edge has no traceable source record.
func (e Edge) IsTerminal() bool {
	return len(e.FromIDs) == 0
}

// identity distinguishes edges for result deduplication. CreatedAt is left
// out: the same derivation recorded twice is one ancestor.
func (e Edge) identity() string {
	var b strings.Builder
	b.WriteString(e.ToTable)
	b.WriteByte(0)
	b.WriteString(e.ToID)
	b.WriteByte(0)
	key := e.SourceKey()
	b.WriteString(key.Table)
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(len(e.SourceIDs())))
	b.WriteByte(0)
	b.WriteString(key.IDs)
	b.WriteByte(0)
	b.WriteString(strings.Join(e.ToFacets, keySep))
	return b.String()
}

// Fetcher looks up the edges that produced records of a table.
//
// FetchProducers returns every stored edge whose ToTable equals table and
// whose ToID is one of ids. Implementations must be safe for concurrent use.
type Fetcher interface {
	FetchProducers(ctx context.Context, table string, ids []string) ([]Edge, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, table string, ids []string) ([]Edge, error)

// FetchProducers calls f(ctx, table, ids).
func (f FetcherFunc) FetchProducers(ctx context.Context, table string, ids []string) ([]Edge, error) {
	return f(ctx, table, ids)
}
