package lineage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/lineagebench/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// memStore is an in-memory edge log that records every lookup it serves.
type memStore struct {
	mu      sync.Mutex
	edges   []Edge
	calls   []string
	failOn  map[string]error
	delay   time.Duration
	inject  map[string][]Edge
	current int
	peak    int
}

func newMemStore(edges ...Edge) *memStore {
	return &memStore{edges: edges, failOn: map[string]error{}, inject: map[string][]Edge{}}
}

func (m *memStore) FetchProducers(ctx context.Context, table string, ids []string) ([]Edge, error) {
	call := table + ":" + strings.Join(ids, ",")

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.current++
	if m.current > m.peak {
		m.peak = m.current
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.current--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := m.failOn[call]; ok {
		return nil, err
	}
	if edges, ok := m.inject[call]; ok {
		return edges, nil
	}

	var out []Edge
	for _, e := range m.edges {
		if e.ToTable != table {
			continue
		}
		for _, id := range ids {
			if e.ToID == id {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *memStore) callsFor(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

func edge(fromTable string, fromIDs []string, toTable, toID string, facets ...string) Edge {
	return Edge{FromTable: fromTable, FromIDs: fromIDs, ToTable: toTable, ToID: toID, ToFacets: facets}
}

func destinations(edges []Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.ToTable + "/" + e.ToID
	}
	return out
}

func sortedDestinations(edges []Edge) []string {
	out := destinations(edges)
	sort.Strings(out)
	return out
}

func indexOf(edges []Edge, toTable, toID string) int {
	for i, e := range edges {
		if e.ToTable == toTable && e.ToID == toID {
			return i
		}
	}
	return -1
}

// =============================================================================
// Resolve
// =============================================================================

func TestResolve_CommitCountExample(t *testing.T) {
	root := edge("dwd_git_commits", []string{"id1"}, "dws_projects", "p1", "commit_count_in_1m")
	store := newMemStore(
		edge("ods_git_commits", []string{"r1"}, "dwd_git_commits", "id1", "code_lines_added", "files_changed"),
	)

	edges, err := Resolve(context.Background(), root, store)
	require.NoError(t, err)

	require.Len(t, edges, 2)
	assert.Equal(t, root, edges[0])
	assert.Equal(t, "dwd_git_commits", edges[1].ToTable)
	assert.Equal(t, "id1", edges[1].ToID)
	assert.Equal(t, 2, store.callCount())
	assert.Equal(t, 1, store.callsFor("dwd_git_commits:id1"))
	assert.Equal(t, 1, store.callsFor("ods_git_commits:r1"))
}

func TestResolve_RootValidation(t *testing.T) {
	tests := []struct {
		name      string
		root      Edge
		wantErr   error
		wantEdges int
		wantCalls int
	}{
		{
			name:      "empty to_id",
			root:      edge("ods", []string{"a"}, "dwd", ""),
			wantErr:   ErrInvalidInput,
			wantCalls: 0,
		},
		{
			name:      "blank to_id",
			root:      edge("ods", []string{"a"}, "dwd", "   "),
			wantErr:   ErrInvalidInput,
			wantCalls: 0,
		},
		{
			name:      "empty from_ids is terminal",
			root:      edge("ods", nil, "dwd", "x"),
			wantEdges: 1,
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(edge("raw", []string{"r"}, "ods", "a"))
			res, err := NewResolver(store, Options{}).Resolve(context.Background(), tt.root)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				require.Len(t, res.Edges, tt.wantEdges)
				assert.Equal(t, tt.root, res.Edges[0])
			}
			assert.Equal(t, tt.wantCalls, store.callCount())
		})
	}
}

func TestResolve_AcyclicReachability(t *testing.T) {
	// dws/p1 <- dwd/{a,b}; dwd/a <- ods/{1}; dwd/b <- ods/{2}; ods/2 <- raw/{x}
	// unrelated edges must not be returned.
	root := edge("dwd", []string{"a", "b"}, "dws", "p1", "count")
	store := newMemStore(
		edge("ods", []string{"1"}, "dwd", "a", "m"),
		edge("ods", []string{"2"}, "dwd", "b", "m"),
		edge("raw", []string{"x"}, "ods", "2", "copy"),
		edge("ods", []string{"9"}, "dwd", "z", "m"),
		edge("raw", []string{"y"}, "ods", "9", "copy"),
	)

	res, err := NewResolver(store, Options{}).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"dwd/a", "dwd/b", "dws/p1", "ods/2"},
		sortedDestinations(res.Edges))
	assert.Equal(t, 0, indexOf(res.Edges, "dws", "p1"))
	assert.Less(t, indexOf(res.Edges, "dwd", "b"), indexOf(res.Edges, "ods", "2"))
	assert.Empty(t, res.Skipped)
	assert.False(t, res.Truncated)
}

func TestResolve_Diamond(t *testing.T) {
	// root <- B and C, both derived from the same key K = ods{k1,k2}.
	root := edge("dwd", []string{"b", "c"}, "dws", "p1", "metric")
	store := newMemStore(
		edge("ods", []string{"k2", "k1"}, "dwd", "b", "m"),
		edge("ods", []string{"k1", "k2"}, "dwd", "c", "m"),
		edge("raw", []string{"r1"}, "ods", "k1", "copy"),
		edge("raw", []string{"r2"}, "ods", "k2", "copy"),
	)

	res, err := NewResolver(store, Options{}).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 1, store.callsFor("ods:k1,k2"), "shared key must be expanded once")
	assert.Equal(t,
		[]string{"dwd/b", "dwd/c", "dws/p1", "ods/k1", "ods/k2"},
		sortedDestinations(res.Edges))
}

func TestResolve_IDsContainingSeparators(t *testing.T) {
	tests := []struct {
		name string
		root Edge
		want []string
	}{
		{
			name: "comma inside an id",
			root: edge("ods", []string{"acme,inc"}, "dwd", "x"),
			want: []string{"dwd/x", "ods/acme,inc"},
		},
		{
			name: "single comma id and split ids are different keys",
			root: edge("t", []string{"a", "b"}, "dws", "p"),
			want: []string{"dws/p", "ods/a", "ods/a,b", "t/a", "t/b"},
		},
	}

	store := newMemStore(
		edge("raw", []string{"r1"}, "ods", "acme,inc"),
		edge("ods", []string{"a,b"}, "t", "a"),
		edge("ods", []string{"a", "b"}, "t", "b"),
		edge("raw", []string{"r2"}, "ods", "a,b"),
		edge("raw", []string{"r3"}, "ods", "a"),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewResolver(store, Options{}).Resolve(context.Background(), tt.root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sortedDestinations(res.Edges))
		})
	}
}

func TestResolve_CycleTerminates(t *testing.T) {
	// a <- b <- c <- a
	root := edge("t", []string{"b"}, "t", "a", "f")
	store := newMemStore(
		edge("t", []string{"c"}, "t", "b", "f"),
		edge("t", []string{"a"}, "t", "c", "f"),
		edge("t", []string{"b"}, "t", "a", "f"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := NewResolver(store, Options{}).Resolve(ctx, root)
	require.NoError(t, err)

	for _, call := range []string{"t:a", "t:b", "t:c"} {
		assert.LessOrEqual(t, store.callsFor(call), 1, "key %s expanded more than once", call)
	}
	assert.Equal(t, []string{"t/a", "t/b", "t/c"}, sortedDestinations(res.Edges))
}

func TestResolve_SelfReference(t *testing.T) {
	root := edge("t", []string{"x"}, "t", "x", "f")
	store := newMemStore(root)

	res, err := NewResolver(store, Options{}).Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, res.Edges, 1)
	assert.Equal(t, 1, store.callCount())
}

func TestResolve_Idempotent(t *testing.T) {
	root := edge("dwd", []string{"a", "b", "c"}, "dws", "p1", "count")
	store := newMemStore(
		edge("ods", []string{"1"}, "dwd", "a"),
		edge("ods", []string{"2"}, "dwd", "b"),
		edge("ods", []string{"3"}, "dwd", "c"),
		edge("raw", []string{"x"}, "ods", "1"),
		edge("raw", []string{"x"}, "ods", "2"),
	)

	r := NewResolver(store, Options{Concurrency: 4})
	first, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, sortedDestinations(first.Edges), sortedDestinations(second.Edges))
	assert.Equal(t, first.Lookups, second.Lookups)
}

func TestResolve_DuplicateEdgesReportedOnce(t *testing.T) {
	// Overlapping id sets return the producer of "shared" twice.
	root := edge("dwd", []string{"a", "b"}, "dws", "p1", "metric")
	store := newMemStore(
		edge("ods", []string{"shared"}, "dwd", "a"),
		edge("ods", []string{"shared", "other"}, "dwd", "b"),
		edge("raw", []string{"r"}, "ods", "shared"),
		edge("raw", []string{"s"}, "ods", "other"),
	)

	res, err := NewResolver(store, Options{}).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"dwd/a", "dwd/b", "dws/p1", "ods/other", "ods/shared"},
		sortedDestinations(res.Edges))
	assert.Equal(t, 1, store.callsFor("ods:shared"))
	assert.Equal(t, 1, store.callsFor("ods:other,shared"))
}

func TestResolve_KeyByID(t *testing.T) {
	root := edge("dwd", []string{"a", "b"}, "dws", "p1", "metric")
	store := newMemStore(
		edge("ods", []string{"shared"}, "dwd", "a"),
		edge("ods", []string{"shared", "other"}, "dwd", "b"),
		edge("raw", []string{"r"}, "ods", "shared"),
		edge("raw", []string{"s"}, "ods", "other"),
	)

	res, err := NewResolver(store, Options{KeyMode: KeyByID}).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"dwd/a", "dwd/b", "dws/p1", "ods/other", "ods/shared"},
		sortedDestinations(res.Edges))
	assert.Equal(t, 1, store.callsFor("ods:shared"))
	assert.Equal(t, 1, store.callsFor("ods:other"))
	assert.Equal(t, 0, store.callsFor("ods:other,shared"))
}

func TestResolve_LookupFailure(t *testing.T) {
	boom := errors.New("connection reset")
	root := edge("dwd", []string{"a", "b"}, "dws", "p1", "metric")
	newStore := func() *memStore {
		s := newMemStore(
			edge("ods", []string{"1"}, "dwd", "a"),
			edge("ods", []string{"2"}, "dwd", "b"),
			edge("raw", []string{"x"}, "ods", "1"),
		)
		s.failOn["ods:2"] = boom
		return s
	}

	t.Run("abort", func(t *testing.T) {
		store := newStore()
		res, err := NewResolver(store, Options{}).Resolve(context.Background(), root)

		require.Error(t, err)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrLookupFailure)
		assert.ErrorIs(t, err, boom)

		var lerr *LookupError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, "ods", lerr.Table)
		assert.Equal(t, []string{"2"}, lerr.IDs)
	})

	t.Run("skip", func(t *testing.T) {
		store := newStore()
		res, err := NewResolver(store, Options{OnLookupError: FailSkip}).Resolve(context.Background(), root)

		require.NoError(t, err)
		assert.Equal(t,
			[]string{"dwd/a", "dwd/b", "dws/p1", "ods/1"},
			sortedDestinations(res.Edges))
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, "ods", res.Skipped[0].Table)
		assert.ErrorIs(t, res.Skipped[0], boom)
	})
}

func TestResolve_MalformedLookupResult(t *testing.T) {
	tests := []struct {
		name     string
		returned []Edge
	}{
		{"empty to_id", []Edge{edge("ods", []string{"1"}, "dwd", "")}},
		{"wrong table", []Edge{edge("ods", []string{"1"}, "other", "a")}},
		{"unrequested id", []Edge{edge("ods", []string{"1"}, "dwd", "zzz")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.inject["dwd:a"] = tt.returned

			root := edge("dwd", []string{"a"}, "dws", "p1")
			_, err := NewResolver(store, Options{}).Resolve(context.Background(), root)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLookupFailure)
			assert.Contains(t, err.Error(), "malformed edge")
		})
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	root := edge("dwd", []string{"a"}, "dws", "p1")
	store := newMemStore(edge("ods", []string{"1"}, "dwd", "a"))
	store.delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewResolver(store, Options{OnLookupError: FailSkip}).Resolve(ctx, root)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolve_ConcurrencyCap(t *testing.T) {
	ids := make([]string, 12)
	var edges []Edge
	for i := range ids {
		ids[i] = fmt.Sprintf("d%02d", i)
		edges = append(edges, edge("ods", []string{fmt.Sprintf("o%02d", i)}, "dwd", ids[i]))
	}
	root := edge("dwd", ids, "dws", "p1")
	store := newMemStore(edges...)
	store.delay = 5 * time.Millisecond

	res, err := NewResolver(store, Options{Concurrency: 3}).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Len(t, res.Edges, 13)
	assert.LessOrEqual(t, store.peak, 3)
	assert.Equal(t, 13, res.Lookups)
}

func TestResolve_MaxDepth(t *testing.T) {
	root := edge("b", []string{"1"}, "a", "root")
	store := newMemStore(
		edge("c", []string{"1"}, "b", "1"),
		edge("d", []string{"1"}, "c", "1"),
	)

	res, err := NewResolver(store, Options{MaxDepth: 1, Logger: testutil.NewTestLogger(t)}).
		Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/root", "b/1"}, destinations(res.Edges))
	assert.True(t, res.Truncated)
	assert.Equal(t, 1, res.Depth)
}

func TestResolve_ParentPrecedesChildren(t *testing.T) {
	root := edge("l1", []string{"a", "b"}, "l0", "root")
	store := newMemStore(
		edge("l2", []string{"a2"}, "l1", "a"),
		edge("l2", []string{"b2"}, "l1", "b"),
		edge("l3", []string{"a3"}, "l2", "a2"),
		edge("l3", []string{"b3"}, "l2", "b2"),
	)

	res, err := NewResolver(store, Options{}).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Less(t, indexOf(res.Edges, "l1", "a"), indexOf(res.Edges, "l2", "a2"))
	assert.Less(t, indexOf(res.Edges, "l1", "b"), indexOf(res.Edges, "l2", "b2"))
	assert.Equal(t, 3, res.Depth)
}

func TestEdge_SourceKey(t *testing.T) {
	a := edge("ods", []string{"2", "1", "1"}, "dwd", "x")
	b := edge("ods", []string{"1", "2"}, "dwd", "y")

	assert.Equal(t, a.SourceKey(), b.SourceKey())
	assert.Equal(t, "ods_1,2", a.SourceKey().String())
	assert.Equal(t, []string{"1", "2"}, a.SourceIDs())
	assert.Equal(t, []string{"2", "1", "1"}, a.FromIDs, "SourceIDs must not reorder the edge")
	assert.NotEqual(t, a.SourceKey(), edge("raw", []string{"1", "2"}, "dwd", "x").SourceKey())
	assert.NotEqual(t,
		edge("ods", []string{"1,2"}, "dwd", "x").SourceKey(),
		a.SourceKey())
}

func TestParseOptions(t *testing.T) {
	p, err := ParseFailurePolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, FailSkip, p)

	p, err = ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailAbort, p)

	_, err = ParseFailurePolicy("retry")
	assert.Error(t, err)

	m, err := ParseKeyMode("id")
	require.NoError(t, err)
	assert.Equal(t, KeyByID, m)

	_, err = ParseKeyMode("row")
	assert.Error(t, err)
}
