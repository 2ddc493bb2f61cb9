package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/internal/synth"
)

// Project metric keys, in stored order.
var ProjectMetricKeys = []string{
	"commit_count_in_1m",
	"commit_count_in_3m",
	"issue_added_count_in_1m",
	"issue_added_count_in_3m",
	"bug_avg_days_in_1m",
	"bug_avg_days_in_3m",
	"bug_q0_days_in_1m",
	"bug_q1_days_in_1m",
	"bug_q2_days_in_1m",
	"bug_q3_days_in_1m",
	"bug_q4_days_in_1m",
}

var (
	commitFacets = ProjectMetricKeys[0:2]
	issueFacets  = ProjectMetricKeys[2:4]
	bugFacets    = ProjectMetricKeys[4:]
)

// bugQuantiles are the cut points reported as q0..q4.
var bugQuantiles = []float64{0.25, 0.5, 0.75, 0.9, 1}

// fact is one deduplicated record contributing to a project metric.
type fact struct {
	projectID int64
	at        int64
	dataID    string
	days      float64
}

// latest selects cols from the newest version of each partition key,
// restricted by where before versions are ranked.
func (w *Warehouse) latest(table, partition string, cols []string, where sq.Sqlizer) sq.SelectBuilder {
	ranked := append(append([]string(nil), cols...),
		fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s ORDER BY data_created_at DESC, data_id DESC) AS rn", partition))
	inner := sq.Select(ranked...).From(w.table(table)).Where(where)
	return w.sb.Select(cols...).FromSelect(inner, "latest").Where(sq.Eq{"rn": 1}).OrderBy("data_id")
}

func (w *Warehouse) loadFacts(ctx context.Context, b sq.SelectBuilder, withMetrics bool) ([]fact, error) {
	rows, err := w.query(ctx, b)
	if err != nil {
		return nil, err
	}

	var facts []fact
	for rows.Next() {
		var f fact
		if !withMetrics {
			if err := rows.Scan(&f.projectID, &f.at, &f.dataID); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan fact: %w", err)
			}
			facts = append(facts, f)
			continue
		}

		var keys, values string
		if err := rows.Scan(&f.projectID, &f.at, &f.dataID, &keys, &values); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		m, err := decodeMetrics(keys, values)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("record %s: %w", f.dataID, err)
		}
		f.days, _ = m.Get("bug_days")
		facts = append(facts, f)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return facts, nil
}

// BuildProjects computes the rolling per-project summary for day from the
// newest version of every commit, issue, and bug of the last three months.
// Every project in the configured range gets a row; each non-empty group of
// contributing records becomes one edge.
func (w *Warehouse) BuildProjects(ctx context.Context, day time.Time) error {
	win := dayWindow(day)
	from3m := win.day.AddDate(0, -3, 0).Unix()
	from1m := win.day.AddDate(0, -1, 0).Unix()

	inRange := func(col string) sq.And {
		return sq.And{sq.GtOrEq{col: from3m}, sq.Lt{col: win.end}}
	}

	commits, err := w.loadFacts(ctx, w.latest(TableDWDGitCommits, "commit_id",
		[]string{"project_id", "commit_at", "data_id"}, inRange("commit_at")), false)
	if err != nil {
		return err
	}
	issues, err := w.loadFacts(ctx, w.latest(TableDWDJiraIssues, "issue_id",
		[]string{"project_id", "issue_created_at", "data_id"}, inRange("issue_created_at")), false)
	if err != nil {
		return err
	}
	bugs, err := w.loadFacts(ctx, w.latest(TableDWMBugs, "issue_id",
		[]string{"project_id", "bug_created_at", "data_id", "metric_keys", "metric_values"},
		sq.Or{inRange("bug_created_at"), inRange("bug_updated_at"), inRange("bug_resolution_date")}), true)
	if err != nil {
		return err
	}

	byProject := func(facts []fact) map[int64][]fact {
		out := make(map[int64][]fact)
		for _, f := range facts {
			out[f.projectID] = append(out[f.projectID], f)
		}
		return out
	}
	commitsBy, issuesBy, bugsBy := byProject(commits), byProject(issues), byProject(bugs)

	stream := w.gen.Stream(TableDWSProjects, win.day)
	var (
		out   [][]any
		edges []lineage.Edge
	)
	for pid := w.opts.ProjectIDs.Min; pid < w.opts.ProjectIDs.Max; pid++ {
		values := projectMetrics(commitsBy[pid], issuesBy[pid], bugsBy[pid], from1m)
		id := stream.NewID()
		out = append(out, []any{id, win.start, win.date(), pid, encodeList(ProjectMetricKeys), encodeList(values)})

		for _, group := range []struct {
			table  string
			facts  []fact
			facets []string
		}{
			{TableDWDGitCommits, commitsBy[pid], commitFacets},
			{TableDWDJiraIssues, issuesBy[pid], issueFacets},
			{TableDWMBugs, bugsBy[pid], bugFacets},
		} {
			if len(group.facts) == 0 {
				continue
			}
			edges = append(edges, lineage.Edge{
				FromTable: group.table,
				FromIDs:   dataIDs(group.facts),
				ToTable:   TableDWSProjects,
				ToID:      id,
				ToFacets:  append([]string(nil), group.facets...),
				CreatedAt: win.day,
			})
		}
	}

	if err := w.insert(ctx, TableDWSProjects, projectColumns, out); err != nil {
		return err
	}
	if err := w.edges.Append(ctx, edges); err != nil {
		return err
	}

	w.logger.Debug("dws built",
		slog.String("table", TableDWSProjects),
		slog.Int("rows", len(out)),
		slog.Int("edges", len(edges)))
	return nil
}

// projectMetrics returns values aligned with ProjectMetricKeys. Facts
// strictly after from1m count towards the one month figures.
func projectMetrics(commits, issues, bugs []fact, from1m int64) []string {
	recent := func(facts []fact) []fact {
		var out []fact
		for _, f := range facts {
			if f.at > from1m {
				out = append(out, f)
			}
		}
		return out
	}

	bugs1m := recent(bugs)
	days1m := bugDays(bugs1m)

	values := []float64{
		float64(len(recent(commits))),
		float64(len(commits)),
		float64(len(recent(issues))),
		float64(len(issues)),
		mean(days1m),
		mean(bugDays(bugs)),
	}
	for _, q := range bugQuantiles {
		values = append(values, quantile(days1m, q))
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = synth.FormatNumber(math.Round(v*100) / 100)
	}
	return out
}

func bugDays(facts []fact) []float64 {
	out := make([]float64, len(facts))
	for i, f := range facts {
		out[i] = f.days
	}
	return out
}

func dataIDs(facts []fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.dataID
	}
	sort.Strings(out)
	return out
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// quantile returns the element of a sorted copy of vs at index
// round(q*(n-1)), the nearest-index rule.
func quantile(vs []float64, q float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	idx := int(math.Round(q * float64(len(sorted)-1)))
	return sorted[idx]
}
