package lineage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency caps the number of lookups in flight when Options leaves
// Concurrency unset.
const DefaultConcurrency = 8

// Options configures a Resolver.
type Options struct {
	// Concurrency is the maximum number of lookups issued at once.
	Concurrency int

	// OnLookupError selects abort (default) or skip on lookup failures.
	OnLookupError FailurePolicy

	// KeyMode selects set (default) or per-id deduplication.
	KeyMode KeyMode

	// MaxDepth stops expansion after this many frontiers. 0 means unlimited.
	MaxDepth int

	Logger *slog.Logger
}

// Result is the outcome of one resolution.
type Result struct {
	// Edges holds the root followed by every distinct ancestor edge in
	// discovery order. An edge always follows the edge it was found from.
	Edges []Edge

	// Skipped lists lookups dropped under FailSkip.
	Skipped []*LookupError

	// Lookups is the number of producer lookups issued.
	Lookups int

	// Depth is the number of frontiers expanded.
	Depth int

	// Truncated is set when MaxDepth stopped expansion with work left.
	Truncated bool
}

// Resolver walks lineage edges back to their earliest recorded sources.
// A Resolver holds no per-call state and may be shared between goroutines.
type Resolver struct {
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger
}

// NewResolver creates a Resolver reading edges from fetcher.
func NewResolver(fetcher Fetcher, opts Options) *Resolver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.OnLookupError == "" {
		opts.OnLookupError = FailAbort
	}
	if opts.KeyMode == "" {
		opts.KeyMode = KeyBySet
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{fetcher: fetcher, opts: opts, logger: logger}
}

// Resolve returns root and all of its ancestor edges using default options.
func Resolve(ctx context.Context, root Edge, fetcher Fetcher) ([]Edge, error) {
	res, err := NewResolver(fetcher, Options{}).Resolve(ctx, root)
	if err != nil {
		return nil, err
	}
	return res.Edges, nil
}

// lookup is one producer query planned for a frontier.
type lookup struct {
	table string
	ids   []string
}

// Resolve expands root breadth-first until no producers remain.
func (r *Resolver) Resolve(ctx context.Context, root Edge) (*Result, error) {
	if strings.TrimSpace(root.ToID) == "" {
		return nil, fmt.Errorf("%w: root edge has empty to_id", ErrInvalidInput)
	}

	res := &Result{Edges: []Edge{root}}
	seen := map[string]struct{}{root.identity(): {}}
	v := newVisited(r.opts.KeyMode)

	frontier := []Edge{root}
	for depth := 0; len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolve lineage: %w", err)
		}

		lookups := v.plan(frontier)
		if len(lookups) == 0 {
			break
		}
		if r.opts.MaxDepth > 0 && depth >= r.opts.MaxDepth {
			res.Truncated = true
			break
		}

		r.logger.Debug("expanding lineage frontier",
			slog.Int("depth", depth),
			slog.Int("edges", len(frontier)),
			slog.Int("lookups", len(lookups)))

		found, skipped, err := r.expand(ctx, lookups)
		if err != nil {
			return nil, err
		}
		res.Lookups += len(lookups)
		res.Depth = depth + 1
		res.Skipped = append(res.Skipped, skipped...)

		var next []Edge
		for _, edges := range found {
			for _, e := range edges {
				id := e.identity()
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				res.Edges = append(res.Edges, e)
				next = append(next, e)
			}
		}
		frontier = next
	}

	return res, nil
}

// expand runs the lookups of one frontier concurrently. Results are indexed
// like lookups so the merge order does not depend on scheduling.
func (r *Resolver) expand(ctx context.Context, lookups []lookup) ([][]Edge, []*LookupError, error) {
	found := make([][]Edge, len(lookups))
	failed := make([]*LookupError, len(lookups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, l := range lookups {
		g.Go(func() error {
			edges, err := r.fetcher.FetchProducers(gctx, l.table, l.ids)
			if err == nil {
				err = validate(l, edges)
			}
			if err == nil {
				found[i] = edges
				return nil
			}

			lerr := &LookupError{Table: l.table, IDs: l.ids, Err: err}
			if r.opts.OnLookupError == FailSkip && gctx.Err() == nil {
				r.logger.Warn("skipping lineage branch", slog.String("error", lerr.Error()))
				failed[i] = lerr
				return nil
			}
			return lerr
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("resolve lineage: %w", ctx.Err())
		}
		return nil, nil, err
	}

	var skipped []*LookupError
	for _, f := range failed {
		if f != nil {
			skipped = append(skipped, f)
		}
	}
	return found, skipped, nil
}

// validate rejects edges that do not answer the lookup that returned them.
func validate(l lookup, edges []Edge) error {
	for _, e := range edges {
		switch {
		case strings.TrimSpace(e.ToID) == "":
			return fmt.Errorf("malformed edge from %s: empty to_id", e.FromTable)
		case e.ToTable != l.table:
			return fmt.Errorf("malformed edge: to_table %q, requested %q", e.ToTable, l.table)
		case !slices.Contains(l.ids, e.ToID):
			return fmt.Errorf("malformed edge: to_id %q was not requested", e.ToID)
		}
	}
	return nil
}

// visited is the per-call record of expanded source keys.
type visited struct {
	mode KeyMode
	keys map[Key]struct{}
	ids  map[string]map[string]struct{} // table -> id, for KeyByID
}

func newVisited(mode KeyMode) *visited {
	return &visited{
		mode: mode,
		keys: make(map[Key]struct{}),
		ids:  make(map[string]map[string]struct{}),
	}
}

// plan marks the frontier's unexpanded sources as visited and returns the
// lookups needed to expand them. Marking happens before any lookup is issued.
func (v *visited) plan(frontier []Edge) []lookup {
	var out []lookup
	for _, e := range frontier {
		if e.IsTerminal() {
			continue
		}

		if v.mode == KeyByID {
			seen := v.ids[e.FromTable]
			if seen == nil {
				seen = make(map[string]struct{})
				v.ids[e.FromTable] = seen
			}
			var fresh []string
			for _, id := range e.FromIDs {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				fresh = append(fresh, id)
			}
			if len(fresh) > 0 {
				slices.Sort(fresh)
				out = append(out, lookup{table: e.FromTable, ids: fresh})
			}
			continue
		}

		key := e.SourceKey()
		if _, ok := v.keys[key]; ok {
			continue
		}
		v.keys[key] = struct{}{}
		out = append(out, lookup{table: e.FromTable, ids: e.SourceIDs()})
	}
	return out
}
