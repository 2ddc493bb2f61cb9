package synth

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Range is a half-open [Min, Max) integer range.
type Range struct {
	Min int64
	Max int64
}

// Generator derives per-stage random streams from a run seed.
type Generator struct {
	seed     int64
	projects Range
	issues   Range
}

// New creates a generator. A zero seed is replaced by the current time.
func New(seed int64, projects, issues Range) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{seed: seed, projects: projects, issues: issues}
}

// Seed returns the effective seed.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Stream returns the random stream for one stage on one day. Streams are not
// safe for concurrent use; every stage takes its own.
func (g *Generator) Stream(stage string, day time.Time) *Stream {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(g.seed))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(stage))
	_, _ = h.Write([]byte(day.UTC().Format("2006-01-02")))

	//nolint:gosec // reproducible synthetic data, not security sensitive
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	return &Stream{rng: rng, projects: g.projects, issues: g.issues}
}

// Stream produces synthetic records and metrics.
type Stream struct {
	rng      *rand.Rand
	projects Range
	issues   Range
}

func (s *Stream) between(r Range) int64 {
	return r.Min + s.rng.Int63n(r.Max-r.Min)
}

func (s *Stream) pick(choices []string) string {
	return choices[s.rng.Intn(len(choices))]
}

// NewID returns a random UUID drawn from the stream.
func (s *Stream) NewID() string {
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		// rand.Rand.Read never fails
		return uuid.NewString()
	}
	return id.String()
}

const commitIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// CommitID returns a 13 character base-36 identifier.
func (s *Stream) CommitID() string {
	var b strings.Builder
	b.Grow(13)
	for range 13 {
		b.WriteByte(commitIDAlphabet[s.rng.Intn(len(commitIDAlphabet))])
	}
	return b.String()
}

// JiraIssues generates n issue snapshots created and updated on day.
// Resolved and closed issues carry day as their resolution date.
func (s *Stream) JiraIssues(n int, day time.Time) []JiraIssue {
	ts := day.UTC().Unix()
	out := make([]JiraIssue, n)
	for i := range out {
		typ := s.pick(IssueTypes)
		status := s.pick(IssueStatuses)
		issueID := s.between(s.issues)

		issue := JiraIssue{
			DataID:         s.NewID(),
			DataCreatedAt:  ts,
			ProjectID:      s.between(s.projects),
			IssueID:        issueID,
			IssueCode:      strings.ToUpper(typ) + "-" + FormatNumber(float64(issueID)),
			IssueCreatedAt: ts,
			IssueUpdatedAt: ts,
			IssueType:      typ,
			IssueStatus:    status,
		}
		if status == "resolved" || status == "closed" {
			resolved := ts
			issue.IssueResolutionDate = &resolved
		}
		out[i] = issue
	}
	return out
}

// GitCommits generates n commits made on day.
func (s *Stream) GitCommits(n int, day time.Time) []GitCommit {
	ts := day.UTC().Unix()
	out := make([]GitCommit, n)
	for i := range out {
		out[i] = GitCommit{
			DataID:        s.NewID(),
			DataCreatedAt: ts,
			CommitAt:      ts,
			ProjectID:     s.between(s.projects),
			CommitID:      s.CommitID(),
			CommitMessage: s.pick(CommitMessageTemplates) + FormatNumber(float64(s.between(s.issues))),
		}
	}
	return out
}

// JiraMetrics draws effort metrics. The phase split never exceeds the total:
// dev is at most half, ba a fifth, qa three tenths, and over_days takes the
// non-negative remainder.
func (s *Stream) JiraMetrics() Metrics {
	total := round2(s.rng.Float64() * 20)
	dev := round2(s.rng.Float64() * total * 0.5)
	ba := round2(s.rng.Float64() * total * 0.2)
	qa := round2(s.rng.Float64() * total * 0.3)
	over := round2(math.Max(0, total-(dev+ba+qa)))

	return Metrics{
		Keys:   append([]string(nil), JiraMetricKeys...),
		Values: formatAll(total, dev, ba, qa, over),
	}
}

// GitMetrics draws change and review metrics.
func (s *Stream) GitMetrics() Metrics {
	added := float64(s.rng.Intn(500))
	deleted := float64(s.rng.Intn(200))
	files := float64(s.rng.Intn(10) + 1)
	review := round2(s.rng.Float64() * 8)
	discussions := float64(s.rng.Intn(15))

	return Metrics{
		Keys:   append([]string(nil), GitMetricKeys...),
		Values: formatAll(added, deleted, files, review, discussions),
	}
}

// BugMetrics scales an issue's total_days by a factor in [0.8, 1.2).
func (s *Stream) BugMetrics(totalDays float64) Metrics {
	days := round2(totalDays * (0.8 + s.rng.Float64()*0.4))
	return Metrics{
		Keys:   append([]string(nil), BugMetricKeys...),
		Values: formatAll(days),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatAll(vs ...float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = FormatNumber(v)
	}
	return out
}
