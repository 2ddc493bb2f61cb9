package warehouse

import (
	"context"
	"fmt"
)

// Table names.
const (
	TableODSJiraIssues = "ods_jira_issues"
	TableODSGitCommits = "ods_git_commits"
	TableDWDJiraIssues = "dwd_jira_issues"
	TableDWDGitCommits = "dwd_git_commits"
	TableDWMBugs       = "dwm_bugs"
	TableDWSProjects   = "dws_projects"
	TableLineage       = "data_lineage"
)

// Tables lists every table in creation order.
var Tables = []string{
	TableODSJiraIssues,
	TableODSGitCommits,
	TableDWDJiraIssues,
	TableDWDGitCommits,
	TableDWMBugs,
	TableDWSProjects,
	TableLineage,
}

var (
	jiraColumns = []string{
		"data_id", "data_created_at", "project_id", "issue_id", "issue_code",
		"issue_created_at", "issue_updated_at", "issue_resolution_date", "issue_type", "issue_status",
	}
	commitColumns = []string{
		"data_id", "data_created_at", "commit_at", "project_id", "commit_id", "commit_message",
	}
	metricColumns = []string{"metric_keys", "metric_values"}
	bugColumns    = []string{
		"data_id", "data_created_at", "metrics_date", "project_id", "issue_id",
		"bug_created_at", "bug_updated_at", "bug_resolution_date", "metric_keys", "metric_values",
	}
	projectColumns = []string{
		"data_id", "data_created_at", "metrics_date", "project_id", "metric_keys", "metric_values",
	}
	edgeColumns = []string{"from_table", "from_ids", "to_table", "to_id", "to_facets", "created_at"}
)

func withMetrics(cols []string) []string {
	out := append([]string(nil), cols...)
	return append(out, metricColumns...)
}

// Column types are shared by DuckDB and PostgreSQL. Timestamps are unix
// seconds; list columns hold JSON text.
const (
	jiraDDL = `
	data_id VARCHAR NOT NULL,
	data_created_at BIGINT NOT NULL,
	project_id BIGINT NOT NULL,
	issue_id BIGINT NOT NULL,
	issue_code VARCHAR NOT NULL,
	issue_created_at BIGINT NOT NULL,
	issue_updated_at BIGINT NOT NULL,
	issue_resolution_date BIGINT,
	issue_type VARCHAR NOT NULL,
	issue_status VARCHAR NOT NULL`

	commitDDL = `
	data_id VARCHAR NOT NULL,
	data_created_at BIGINT NOT NULL,
	commit_at BIGINT NOT NULL,
	project_id BIGINT NOT NULL,
	commit_id VARCHAR NOT NULL,
	commit_message VARCHAR NOT NULL`

	metricDDL = `,
	metric_keys VARCHAR NOT NULL,
	metric_values VARCHAR NOT NULL`
)

var tableDDL = map[string]string{
	TableODSJiraIssues: jiraDDL,
	TableODSGitCommits: commitDDL,
	TableDWDJiraIssues: jiraDDL + metricDDL,
	TableDWDGitCommits: commitDDL + metricDDL,
	TableDWMBugs: `
	data_id VARCHAR NOT NULL,
	data_created_at BIGINT NOT NULL,
	metrics_date VARCHAR NOT NULL,
	project_id BIGINT NOT NULL,
	issue_id BIGINT NOT NULL,
	bug_created_at BIGINT NOT NULL,
	bug_updated_at BIGINT NOT NULL,
	bug_resolution_date BIGINT` + metricDDL,
	TableDWSProjects: `
	data_id VARCHAR NOT NULL,
	data_created_at BIGINT NOT NULL,
	metrics_date VARCHAR NOT NULL,
	project_id BIGINT NOT NULL` + metricDDL,
	TableLineage: `
	from_table VARCHAR NOT NULL,
	from_ids VARCHAR NOT NULL,
	to_table VARCHAR NOT NULL,
	to_id VARCHAR NOT NULL,
	to_facets VARCHAR NOT NULL,
	created_at BIGINT NOT NULL`,
}

// CreateTables creates every table and the lineage lookup index.
func (w *Warehouse) CreateTables(ctx context.Context) error {
	for _, t := range Tables {
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n)", w.table(t), tableDDL[t])
		if err := w.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s: %w", t, err)
		}
	}

	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_to ON %s (to_table, to_id)", TableLineage, w.table(TableLineage))
	if err := w.db.Exec(ctx, idx); err != nil {
		return fmt.Errorf("failed to index %s: %w", TableLineage, err)
	}
	return nil
}

// Clean removes every row from every table.
func (w *Warehouse) Clean(ctx context.Context) error {
	for _, t := range Tables {
		sql, args, err := w.sb.Delete(w.table(t)).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete for %s: %w", t, err)
		}
		if err := w.db.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("failed to clean %s: %w", t, err)
		}
		w.logger.Debug("table cleaned", "table", t)
	}
	return nil
}
