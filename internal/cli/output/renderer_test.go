package output

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTestRenderer(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{" json ", ModeJSON},
		{"yaml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"explicit text piped", ModeText, false, ModeText},
		{"explicit json on terminal", ModeJSON, true, ModeJSON},
		{"empty is auto", "", false, ModeMarkdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_NonTerminalWriterIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)

	r.Header(2, "Run abc")
	r.KeyValue("Status", "completed")
	r.Success("done")
	r.Table([]string{"date", "duration_ms"}, [][]any{{"2024-01-01", 12}, {"2024-01-02", 15}})

	got := out.String()
	assert.Contains(t, got, "## Run abc")
	assert.Contains(t, got, "**Status:** completed")
	assert.Contains(t, got, "- done")
	assert.Contains(t, got, "| 2024-01-01 | 12 |")
	assert.Contains(t, strings.ToLower(got), "duration_ms")
	assert.False(t, ansi.MatchString(got), "markdown must not contain ANSI codes")
}

func TestRenderer_TextWithoutTerminalHasNoANSI(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText, false)

	r.Header(1, "Summary")
	r.Success("ok")
	r.Warning("careful")
	r.Error("broken")
	r.Table([]string{"table", "rows"}, [][]any{{"ods_git_commits", 10}})

	assert.Contains(t, out.String(), "Summary")
	assert.Contains(t, out.String(), "✓ ok")
	assert.Contains(t, out.String(), "ods_git_commits")
	assert.Contains(t, errOut.String(), "! careful")
	assert.Contains(t, errOut.String(), "✗ broken")
	assert.False(t, ansi.MatchString(out.String()+errOut.String()))
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)

	require.NoError(t, r.JSON(map[string]any{"timings": []int{1, 2}}))

	var got map[string][]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []int{1, 2}, got["timings"])
}

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "# A", FormatHeader(0, "A"))
	assert.Equal(t, "### A", FormatHeader(3, "A"))
}
