package warehouse

import (
	"context"
	"log/slog"
	"time"
)

// LoadJiraIssues generates the day's issue export into ods_jira_issues.
func (w *Warehouse) LoadJiraIssues(ctx context.Context, day time.Time) error {
	win := dayWindow(day)
	issues := w.gen.Stream(TableODSJiraIssues, win.day).JiraIssues(w.opts.DailyJiraIssues, win.day)

	rows := make([][]any, len(issues))
	for i, is := range issues {
		rows[i] = []any{
			is.DataID, is.DataCreatedAt, is.ProjectID, is.IssueID, is.IssueCode,
			is.IssueCreatedAt, is.IssueUpdatedAt, nullable(is.IssueResolutionDate), is.IssueType, is.IssueStatus,
		}
	}
	if err := w.insert(ctx, TableODSJiraIssues, jiraColumns, rows); err != nil {
		return err
	}

	w.logger.Debug("ods loaded", slog.String("table", TableODSJiraIssues), slog.Int("rows", len(rows)))
	return nil
}

// LoadGitCommits generates the day's commit export into ods_git_commits.
func (w *Warehouse) LoadGitCommits(ctx context.Context, day time.Time) error {
	win := dayWindow(day)
	commits := w.gen.Stream(TableODSGitCommits, win.day).GitCommits(w.opts.DailyGitCommits, win.day)

	rows := make([][]any, len(commits))
	for i, c := range commits {
		rows[i] = []any{c.DataID, c.DataCreatedAt, c.CommitAt, c.ProjectID, c.CommitID, c.CommitMessage}
	}
	if err := w.insert(ctx, TableODSGitCommits, commitColumns, rows); err != nil {
		return err
	}

	w.logger.Debug("ods loaded", slog.String("table", TableODSGitCommits), slog.Int("rows", len(rows)))
	return nil
}
