package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spboyer/staffeval/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectedError(t *testing.T) {
	err := &RejectedError{SessionID: "s-1"}
	assert.Equal(t, "session s-1: candidate rejected", err.Error())
}

func TestErrorTypeDetection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		rejected bool
	}{
		{name: "RejectedError", err: &RejectedError{SessionID: "a"}, rejected: true},
		{name: "regular error", err: errors.New("config error"), rejected: false},
		{name: "wrapped RejectedError", err: errors.Join(&RejectedError{SessionID: "a"}, errors.New("context")), rejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rejected *RejectedError
			assert.Equal(t, tt.rejected, errors.As(tt.err, &rejected))
		})
	}
}

// workspace writes a mock-backend config into a temp dir and returns the
// persistent flags pointing at it.
func workspace(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	cfg := `backend:
  kind: mock
generation:
  retry_delay_ms: 1
events:
  log_dir: ` + filepath.Join(dir, "events") + `
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".staffeval.yaml"), []byte(cfg), 0o644))
	return []string{"--config-dir", dir, "--db", filepath.Join(dir, "staffeval.db")}
}

func run(t *testing.T, flags []string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(append([]string{}, args...), flags...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPipelineCommands(t *testing.T) {
	flags := workspace(t)

	out, err := run(t, flags, "session", "create", "--id", "s-1", "--role", "secretary", "--candidate", "cand-a")
	require.NoError(t, err)
	assert.Equal(t, "s-1\n", out)

	out, err = run(t, flags, "interview", "test", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Running")
	assert.Contains(t, out, "Completed")

	out, err = run(t, flags, "deep-analysis", "s-1", "--step", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Deep analysis of step 0")

	// The mock backend never returns valid arbiter JSON, so the neutral
	// result applies; with no holder the ladder hires on cold start.
	out, err = run(t, flags, "interview", "verdict", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Decision: hire")
	assert.Contains(t, out, "cold start")

	out, err = run(t, flags, "decide", "s-1", "--decision", "hire", "--by", "ops", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "hire confirmed by ops")

	out, err = run(t, flags, "history", "list", "secretary")
	require.NoError(t, err)
	assert.Contains(t, out, "cand-a")
	assert.Contains(t, out, "current")

	out, err = run(t, flags, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hire (confirmed)")

	out, err = run(t, flags, "session", "show", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "synthetic")

	logs, err := filepath.Glob(filepath.Join(flags[1], "events", "*.jsonl"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestVerdictRetestAgainstSeededHolder(t *testing.T) {
	flags := workspace(t)

	_, err := run(t, flags, "history", "record", "critic", "--model", "incumbent", "--score", "9")
	require.NoError(t, err)
	_, err = run(t, flags, "session", "create", "--id", "s-2", "--role", "critic", "--candidate", "cand-b")
	require.NoError(t, err)
	_, err = run(t, flags, "interview", "test", "s-2")
	require.NoError(t, err)

	out, err := run(t, flags, "interview", "verdict", "s-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Decision: retest")
}

func TestDecideRejectReturnsRejectedError(t *testing.T) {
	flags := workspace(t)

	_, err := run(t, flags, "session", "create", "--id", "s-3", "--role", "analyst", "--candidate", "cand-c")
	require.NoError(t, err)
	_, err = run(t, flags, "interview", "test", "s-3")
	require.NoError(t, err)
	_, err = run(t, flags, "interview", "verdict", "s-3")
	require.NoError(t, err)

	_, err = run(t, flags, "decide", "s-3", "--decision", "reject", "--by", "ops", "--yes")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "s-3", rejected.SessionID)
}

func TestDecidePrompt(t *testing.T) {
	flags := workspace(t)
	_, err := run(t, flags, "session", "create", "--id", "s-4", "--role", "secretary", "--candidate", "cand-d")
	require.NoError(t, err)
	_, err = run(t, flags, "interview", "test", "s-4")
	require.NoError(t, err)
	_, err = run(t, flags, "interview", "verdict", "s-4")
	require.NoError(t, err)

	orig := promptConfirm
	t.Cleanup(func() { promptConfirm = orig })

	var asked string
	promptConfirm = func(_ io.Reader, _ io.Writer, question string) bool {
		asked = question
		return false
	}
	_, err = run(t, flags, "decide", "s-4", "--decision", "retest", "--by", "ops")
	require.ErrorIs(t, err, errNotConfirmed)
	assert.Contains(t, asked, "The verdict was hire")

	promptConfirm = func(io.Reader, io.Writer, string) bool { return true }
	out, err := run(t, flags, "decide", "s-4", "--decision", "hire", "--by", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "hire confirmed")
}

func TestLocalCommandsNeedDatabase(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, []string{"--config-dir", dir}, "session", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is required")
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	flags := workspace(t)
	_, err := run(t, flags, "decide", "s-9", "--decision", "maybe", "--by", "ops", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid decision")
}

func TestLoadVariantConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`- label: cold
  generation: {max_tokens: 1024, temperature: 0.2, idle_timeout_ms: 30000}
- label: critic
  adversarial: true
  system_prompt: Find every flaw.
  generation: {max_tokens: "512", temperature: 0.9, idle_timeout_ms: 30000}
`), 0o644))

	configs, err := loadVariantConfigs(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "cold", configs[0].Label)
	assert.Equal(t, 1024, configs[0].Generation.MaxTokens)
	assert.True(t, configs[1].Adversarial)
	assert.Equal(t, 512, configs[1].Generation.MaxTokens)

	require.NoError(t, os.WriteFile(path, []byte("- label: x\n  colour: red\n"), 0o644))
	_, err = loadVariantConfigs(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		event   events.Event
		verbose bool
		want    string
	}{
		{"test start", events.New(events.Start, map[string]any{"total_steps": 5}), false, "Running 5 test steps"},
		{"step failed", events.New(events.StepComplete, map[string]any{
			"step_index": 2, "status": "failed", "elapsed_ms": int64(1500), "token_count": 0, "error": "boom",
		}), false, "  step 2 failed in 1.5s, 0 chunks (boom)"},
		{"progress hidden", events.New(events.StepProgress, map[string]any{"tokens": 10}), false, ""},
		{"progress verbose", events.New(events.StepProgress, map[string]any{"tokens": 10}), true, "    ... 10 chunks"},
		{"merge failed", events.New(events.SynthesisComplete, map[string]any{"error": "timeout"}), false, "  merge failed (timeout), using the longest variant"},
		{"verdict", events.New(events.Complete, map[string]any{"auto_decision": "hire", "avg_score": 7.5}), false, "Decision: hire (average 7.50)"},
		{"unknown", events.New(events.Type("other"), nil), false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(tt.event, tt.verbose))
		})
	}
}

func TestTable(t *testing.T) {
	tb := newTable("ID", "NAME")
	tb.add("1", "日本語")
	tb.add("22", "x")
	var buf bytes.Buffer
	tb.render(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID  NAME", lines[0])
	assert.Equal(t, "--  ------", lines[1])
	assert.Equal(t, "1   日本語", lines[2])
	assert.Equal(t, "22  x", lines[3])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b\t c", 10))
	assert.Equal(t, "abcdefghi…", truncate("abcdefghijklmnop", 10))
}
