package synth

import (
	"strconv"
)

// Issue types and statuses.
var (
	IssueTypes    = []string{"bug", "task", "story"}
	IssueStatuses = []string{"open", "in-progress", "resolved", "closed"}
)

// CommitMessageTemplates are completed with an issue number.
var CommitMessageTemplates = []string{
	"fix: resolve bug #",
	"feat: add feature #",
	"docs: update docs #",
	"refactor: restructure code #",
	"test: add test cases #",
}

// Metric keys attached by each layer.
var (
	JiraMetricKeys = []string{"total_days", "dev_days", "ba_days", "qa_days", "over_days"}
	GitMetricKeys  = []string{"code_lines_added", "code_lines_deleted", "files_changed", "review_hours", "discussion_count"}
	BugMetricKeys  = []string{"bug_days"}
)

// JiraIssue is one snapshot of an issue as exported from the tracker.
type JiraIssue struct {
	DataID              string
	DataCreatedAt       int64
	ProjectID           int64
	IssueID             int64
	IssueCode           string
	IssueCreatedAt      int64
	IssueUpdatedAt      int64
	IssueResolutionDate *int64
	IssueType           string
	IssueStatus         string
}

// GitCommit is one commit as exported from source control.
type GitCommit struct {
	DataID        string
	DataCreatedAt int64
	CommitAt      int64
	ProjectID     int64
	CommitID      string
	CommitMessage string
}

// Metrics is a parallel key/value list. Values are decimal strings.
type Metrics struct {
	Keys   []string
	Values []string
}

// Get returns the numeric value of key.
func (m Metrics) Get(key string) (float64, bool) {
	for i, k := range m.Keys {
		if k != key || i >= len(m.Values) {
			continue
		}
		v, err := strconv.ParseFloat(m.Values[i], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// FormatNumber renders v the way metric values are stored.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
