package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/internal/synth"
)

// BuildBugs derives one dwm_bugs row for every bug issue touched on day.
// bug_days scales the issue's total_days, and the edge points back at the
// exact dwd record the row was derived from.
func (w *Warehouse) BuildBugs(ctx context.Context, day time.Time) error {
	win := dayWindow(day)

	rows, err := w.query(ctx, w.sb.Select(withMetrics(jiraColumns)...).
		From(w.table(TableDWDJiraIssues)).
		Where(sq.Eq{"issue_type": "bug"}).
		Where(touchedOn(win, "issue_created_at", "issue_updated_at", "issue_resolution_date")).
		OrderBy("data_id"))
	if err != nil {
		return err
	}

	type source struct {
		issue   synth.JiraIssue
		metrics synth.Metrics
	}
	var sources []source
	for rows.Next() {
		var keys, values string
		is, err := scanIssue(rows, &keys, &values)
		if err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan %s: %w", TableDWDJiraIssues, err)
		}
		m, err := decodeMetrics(keys, values)
		if err != nil {
			_ = rows.Close()
			return fmt.Errorf("record %s: %w", is.DataID, err)
		}
		sources = append(sources, source{issue: is, metrics: m})
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	stream := w.gen.Stream(TableDWMBugs, win.day)
	out := make([][]any, len(sources))
	edges := make([]lineage.Edge, len(sources))
	for i, src := range sources {
		total, _ := src.metrics.Get("total_days")
		m := stream.BugMetrics(total)
		id := stream.NewID()

		out[i] = []any{
			id, win.start, win.date(), src.issue.ProjectID, src.issue.IssueID,
			src.issue.IssueCreatedAt, src.issue.IssueUpdatedAt, nullable(src.issue.IssueResolutionDate),
			encodeList(m.Keys), encodeList(m.Values),
		}
		edges[i] = lineage.Edge{
			FromTable: TableDWDJiraIssues,
			FromIDs:   []string{src.issue.DataID},
			ToTable:   TableDWMBugs,
			ToID:      id,
			ToFacets:  m.Keys,
			CreatedAt: win.day,
		}
	}

	if err := w.insert(ctx, TableDWMBugs, bugColumns, out); err != nil {
		return err
	}
	if err := w.edges.Append(ctx, edges); err != nil {
		return err
	}

	w.logger.Debug("dwm built", slog.String("table", TableDWMBugs), slog.Int("rows", len(out)))
	return nil
}

func decodeMetrics(keys, values string) (synth.Metrics, error) {
	var (
		m   synth.Metrics
		err error
	)
	if m.Keys, err = decodeList(keys); err != nil {
		return m, err
	}
	if m.Values, err = decodeList(values); err != nil {
		return m, err
	}
	if len(m.Keys) != len(m.Values) {
		return m, fmt.Errorf("metric keys and values differ in length: %d != %d", len(m.Keys), len(m.Values))
	}
	return m, nil
}
