package runs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/lineagebench/internal/ui/resources"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// ViewData is what the chart view renders.
type ViewData struct {
	Run  *core.Run
	Runs []*core.Run
}

// Page wraps body in a full HTML document that subscribes to updatesURL.
func Page(title, updatesURL string, isDev bool, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		esc := templ.EscapeString[string]
		var head strings.Builder
		head.WriteString("<!doctype html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
		fmt.Fprintf(&head, "<title>%s - lineagebench</title>", esc(title))
		fmt.Fprintf(&head, `<link rel="stylesheet" href="%s">`, resources.StaticPath("chart.css"))
		fmt.Fprintf(&head, `<script type="module" src="%s"></script>`, datastarScript)
		head.WriteString("</head>")
		fmt.Fprintf(&head, `<body data-init="@get('%s')">`, esc(updatesURL))
		if isDev {
			head.WriteString(`<div data-init="@get('/reload')"></div>`)
		}
		if _, err := io.WriteString(w, head.String()); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// RunView renders the selected run's charts and the run history. Its root
// element id is stable so SSE patches replace it in place.
func RunView(data ViewData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<main id="run-view">`); err != nil {
			return err
		}

		if data.Run == nil {
			if _, err := io.WriteString(w, `<p class="empty">No benchmark runs recorded yet. Start one with <code>lineagebench bench</code>.</p>`); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, runHeader(data.Run)); err != nil {
				return err
			}
			for _, c := range []ChartData{DurationChart(data.Run), RowsChart(data.Run)} {
				if err := Chart(c).Render(ctx, w); err != nil {
					return err
				}
			}
		}

		if _, err := io.WriteString(w, runTable(data.Runs, data.Run)); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main>`)
		return err
	})
}

func runHeader(run *core.Run) string {
	esc := templ.EscapeString[string]
	var b strings.Builder
	fmt.Fprintf(&b, `<header><h1>Run <code>%s</code></h1>`, esc(run.ID))
	fmt.Fprintf(&b, `<p><span class="status status-%s">%s</span> %s to %s, %d issues and %d commits per day, seed %d, target %s</p>`,
		esc(string(run.Status)), esc(string(run.Status)),
		esc(run.Args.StartDate), esc(run.Args.EndDate),
		run.Args.DailyJiraIssues, run.Args.DailyGitCommits, run.Args.Seed, esc(run.Args.Target))
	if run.Error != "" {
		fmt.Fprintf(&b, `<p class="error">%s</p>`, esc(run.Error))
	}
	b.WriteString(`</header>`)
	return b.String()
}

func runTable(runs []*core.Run, current *core.Run) string {
	if len(runs) == 0 {
		return ""
	}
	esc := templ.EscapeString[string]
	var b strings.Builder
	b.WriteString(`<table class="runs"><thead><tr><th>Run</th><th>Status</th><th>Started</th><th>Range</th><th></th></tr></thead><tbody>`)
	for _, r := range runs {
		class := ""
		if current != nil && r.ID == current.ID {
			class = ` class="current"`
		}
		fmt.Fprintf(&b, `<tr%s><td><a href="/?run=%s"><code>%s</code></a></td><td>%s</td><td>%s</td><td>%s to %s</td><td><a href="/api/runs/%s/results">json</a></td></tr>`,
			class, esc(r.ID), esc(shortID(r.ID)), esc(string(r.Status)),
			esc(r.StartedAt.Local().Format(time.DateTime)), esc(r.Args.StartDate), esc(r.Args.EndDate), esc(r.ID))
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
