package synth

import (
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	return New(42, Range{Min: 1, Max: 10}, Range{Min: 1, Max: 99})
}

func TestGenerator_Deterministic(t *testing.T) {
	a := newTestGenerator().Stream("ods_jira_issues", day).JiraIssues(5, day)
	b := newTestGenerator().Stream("ods_jira_issues", day).JiraIssues(5, day)
	assert.Equal(t, a, b)

	other := newTestGenerator().Stream("ods_jira_issues", day.AddDate(0, 0, 1)).JiraIssues(5, day)
	assert.NotEqual(t, a[0].DataID, other[0].DataID, "different days draw different streams")

	git := newTestGenerator().Stream("ods_git_commits", day).GitCommits(1, day)
	assert.NotEqual(t, a[0].DataID, git[0].DataID, "different stages draw different streams")
}

func TestGenerator_ZeroSeed(t *testing.T) {
	g := New(0, Range{Min: 1, Max: 2}, Range{Min: 1, Max: 2})
	assert.NotZero(t, g.Seed())
}

func TestStream_JiraIssues(t *testing.T) {
	issues := newTestGenerator().Stream("ods_jira_issues", day).JiraIssues(200, day)
	require.Len(t, issues, 200)

	seen := make(map[string]bool)
	for _, is := range issues {
		_, err := uuid.Parse(is.DataID)
		require.NoError(t, err)
		assert.False(t, seen[is.DataID], "data ids are unique")
		seen[is.DataID] = true

		assert.GreaterOrEqual(t, is.ProjectID, int64(1))
		assert.Less(t, is.ProjectID, int64(10))
		assert.GreaterOrEqual(t, is.IssueID, int64(1))
		assert.Less(t, is.IssueID, int64(99))
		assert.Contains(t, IssueTypes, is.IssueType)
		assert.Contains(t, IssueStatuses, is.IssueStatus)
		assert.Equal(t, strings.ToUpper(is.IssueType)+"-"+FormatNumber(float64(is.IssueID)), is.IssueCode)
		assert.Equal(t, day.Unix(), is.IssueCreatedAt)
		assert.Equal(t, day.Unix(), is.IssueUpdatedAt)

		switch is.IssueStatus {
		case "resolved", "closed":
			require.NotNil(t, is.IssueResolutionDate)
			assert.Equal(t, day.Unix(), *is.IssueResolutionDate)
		default:
			assert.Nil(t, is.IssueResolutionDate)
		}
	}
}

func TestStream_GitCommits(t *testing.T) {
	commitID := regexp.MustCompile(`^[0-9a-z]{13}$`)
	message := regexp.MustCompile(`^(fix|feat|docs|refactor|test): .+ #\d+$`)

	for _, c := range newTestGenerator().Stream("ods_git_commits", day).GitCommits(100, day) {
		assert.Regexp(t, commitID, c.CommitID)
		assert.Regexp(t, message, c.CommitMessage)
		assert.Equal(t, day.Unix(), c.CommitAt)
		assert.GreaterOrEqual(t, c.ProjectID, int64(1))
		assert.Less(t, c.ProjectID, int64(10))
	}
}

func TestStream_JiraMetrics(t *testing.T) {
	s := newTestGenerator().Stream("dwd_jira_issues", day)
	const eps = 0.0051

	for range 500 {
		m := s.JiraMetrics()
		require.Equal(t, JiraMetricKeys, m.Keys)

		total, ok := m.Get("total_days")
		require.True(t, ok)
		dev, _ := m.Get("dev_days")
		ba, _ := m.Get("ba_days")
		qa, _ := m.Get("qa_days")
		over, _ := m.Get("over_days")

		assert.GreaterOrEqual(t, total, 0.0)
		assert.LessOrEqual(t, total, 20.0)
		assert.LessOrEqual(t, dev, total*0.5+eps)
		assert.LessOrEqual(t, ba, total*0.2+eps)
		assert.LessOrEqual(t, qa, total*0.3+eps)
		assert.GreaterOrEqual(t, over, 0.0)
		assert.InDelta(t, math.Max(total, dev+ba+qa), dev+ba+qa+over, 0.011)
	}
}

func TestStream_GitMetrics(t *testing.T) {
	s := newTestGenerator().Stream("dwd_git_commits", day)

	for range 500 {
		m := s.GitMetrics()
		require.Equal(t, GitMetricKeys, m.Keys)

		added, _ := m.Get("code_lines_added")
		deleted, _ := m.Get("code_lines_deleted")
		files, _ := m.Get("files_changed")
		review, _ := m.Get("review_hours")
		discussions, _ := m.Get("discussion_count")

		assert.True(t, added >= 0 && added < 500)
		assert.True(t, deleted >= 0 && deleted < 200)
		assert.True(t, files >= 1 && files <= 10)
		assert.True(t, review >= 0 && review <= 8)
		assert.True(t, discussions >= 0 && discussions < 15)
	}
}

func TestStream_BugMetrics(t *testing.T) {
	s := newTestGenerator().Stream("dwm_bugs", day)

	for range 200 {
		m := s.BugMetrics(10)
		days, ok := m.Get("bug_days")
		require.True(t, ok)
		assert.GreaterOrEqual(t, days, 8.0)
		assert.LessOrEqual(t, days, 12.0)
	}

	zero, _ := s.BugMetrics(0).Get("bug_days")
	assert.Zero(t, zero)
}

func TestMetrics_Get(t *testing.T) {
	m := Metrics{Keys: []string{"a", "b", "c"}, Values: []string{"1.5", "x"}}

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)

	_, ok = m.Get("b")
	assert.False(t, ok, "unparsable value")
	_, ok = m.Get("c")
	assert.False(t, ok, "missing value")
	_, ok = m.Get("d")
	assert.False(t, ok, "missing key")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "3.1", FormatNumber(3.1))
	assert.Equal(t, "42", FormatNumber(42))
	assert.Equal(t, "0", FormatNumber(0))
}
