package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/leapstack-labs/lineagebench/internal/lineage"
	"github.com/leapstack-labs/lineagebench/internal/synth"
)

// touchedOn matches issues created, updated, or resolved inside the window.
func touchedOn(win window, created, updated, resolved string) sq.Or {
	return sq.Or{win.contains(updated), win.contains(created), win.contains(resolved)}
}

func scanIssue(rows interface{ Scan(...any) error }, extra ...any) (synth.JiraIssue, error) {
	var (
		is       synth.JiraIssue
		resolved sql.NullInt64
	)
	dest := []any{
		&is.DataID, &is.DataCreatedAt, &is.ProjectID, &is.IssueID, &is.IssueCode,
		&is.IssueCreatedAt, &is.IssueUpdatedAt, &resolved, &is.IssueType, &is.IssueStatus,
	}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return is, err
	}
	if resolved.Valid {
		is.IssueResolutionDate = &resolved.Int64
	}
	return is, nil
}

func issueRow(is synth.JiraIssue) []any {
	return []any{
		is.DataID, is.DataCreatedAt, is.ProjectID, is.IssueID, is.IssueCode,
		is.IssueCreatedAt, is.IssueUpdatedAt, nullable(is.IssueResolutionDate), is.IssueType, is.IssueStatus,
	}
}

// BuildJiraIssues copies the issues touched on day from ods into dwd with
// effort metrics, recording one edge per record.
func (w *Warehouse) BuildJiraIssues(ctx context.Context, day time.Time) error {
	win := dayWindow(day)

	rows, err := w.query(ctx, w.sb.Select(jiraColumns...).
		From(w.table(TableODSJiraIssues)).
		Where(touchedOn(win, "issue_created_at", "issue_updated_at", "issue_resolution_date")).
		OrderBy("data_id"))
	if err != nil {
		return err
	}
	var issues []synth.JiraIssue
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan %s: %w", TableODSJiraIssues, err)
		}
		issues = append(issues, is)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	stream := w.gen.Stream(TableDWDJiraIssues, win.day)
	out := make([][]any, len(issues))
	edges := make([]lineage.Edge, len(issues))
	for i, is := range issues {
		m := stream.JiraMetrics()
		out[i] = append(issueRow(is), encodeList(m.Keys), encodeList(m.Values))
		edges[i] = lineage.Edge{
			FromTable: TableODSJiraIssues,
			FromIDs:   []string{is.DataID},
			ToTable:   TableDWDJiraIssues,
			ToID:      is.DataID,
			ToFacets:  m.Keys,
			CreatedAt: win.day,
		}
	}

	if err := w.insert(ctx, TableDWDJiraIssues, withMetrics(jiraColumns), out); err != nil {
		return err
	}
	if err := w.edges.Append(ctx, edges); err != nil {
		return err
	}

	w.logger.Debug("dwd built", slog.String("table", TableDWDJiraIssues), slog.Int("rows", len(out)))
	return nil
}

// BuildGitCommits copies the day's commits from ods into dwd with change
// metrics, recording one edge per record.
func (w *Warehouse) BuildGitCommits(ctx context.Context, day time.Time) error {
	win := dayWindow(day)

	rows, err := w.query(ctx, w.sb.Select(commitColumns...).
		From(w.table(TableODSGitCommits)).
		Where(win.contains("commit_at")).
		OrderBy("data_id"))
	if err != nil {
		return err
	}
	var commits []synth.GitCommit
	for rows.Next() {
		var c synth.GitCommit
		if err := rows.Scan(&c.DataID, &c.DataCreatedAt, &c.CommitAt, &c.ProjectID, &c.CommitID, &c.CommitMessage); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan %s: %w", TableODSGitCommits, err)
		}
		commits = append(commits, c)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	stream := w.gen.Stream(TableDWDGitCommits, win.day)
	out := make([][]any, len(commits))
	edges := make([]lineage.Edge, len(commits))
	for i, c := range commits {
		m := stream.GitMetrics()
		out[i] = []any{c.DataID, c.DataCreatedAt, c.CommitAt, c.ProjectID, c.CommitID, c.CommitMessage,
			encodeList(m.Keys), encodeList(m.Values)}
		edges[i] = lineage.Edge{
			FromTable: TableODSGitCommits,
			FromIDs:   []string{c.DataID},
			ToTable:   TableDWDGitCommits,
			ToID:      c.DataID,
			ToFacets:  m.Keys,
			CreatedAt: win.day,
		}
	}

	if err := w.insert(ctx, TableDWDGitCommits, withMetrics(commitColumns), out); err != nil {
		return err
	}
	if err := w.edges.Append(ctx, edges); err != nil {
		return err
	}

	w.logger.Debug("dwd built", slog.String("table", TableDWDGitCommits), slog.Int("rows", len(out)))
	return nil
}

// closeRows closes rows and reports any iteration error.
func closeRows(rows interface {
	Err() error
	Close() error
}) error {
	iterErr := rows.Err()
	closeErr := rows.Close()
	if iterErr != nil {
		return fmt.Errorf("error iterating rows: %w", iterErr)
	}
	return closeErr
}
