// Package lineage resolves record-level provenance.
//
// Every derived record written by a transformation step is accompanied by an
// Edge stating which records of which source table its facets were computed
// from. Edges form an append-only log; this package only reads it.
//
// Given a root edge, a Resolver walks the log backwards: it asks a Fetcher
// which edges produced the root's source records, then which edges produced
// those, and so on until no producer is recorded. Each source key (table plus
// id set) is expanded at most once per call, so shared ancestors and cycles
// in the log terminate.
//
// # Basic Usage
//
//	r := lineage.NewResolver(store, lineage.Options{Concurrency: 8})
//
//	res, err := r.Resolve(ctx, root)
//	if err != nil {
//	    return err
//	}
//	for _, e := range res.Edges {
//	    fmt.Printf("%s[%s] <- %s%v\n", e.ToTable, e.ToID, e.FromTable, e.FromIDs)
//	}
package lineage
