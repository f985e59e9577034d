package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/engage/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
  "deal_id": "deal-7",
  "deal_name": "Acme Corp Deal",
  "executive_summary": "High-value enterprise opportunity in evaluation phase with strong interest shown in our automated workflow features and API integration capabilities.",
  "key_insights": ["Decision maker attended demo personally"],
  "p0_actions": [
    {
      "action": {
        "type": "phone",
        "to_phone": "+1 555 010 2030",
        "to_name": "John Doe",
        "objective": "Confirm pilot scope and start date",
        "talking_points": ["Recap the integration questions from the demo", "Propose a two week pilot starting Monday"],
        "expected_duration_minutes": 20
      },
      "priority": "P0",
      "recommended_timing": "Tomorrow at 10am his time",
      "rationale": "The demo created momentum and a quick call locks in the pilot before the quarter closes",
      "context": "Demo completed yesterday with strong interest in workflow automation",
      "success_metrics": ["Pilot start date agreed on the call"]
    }
  ],
  "overall_strategy": "Fast-track approach focusing on immediate follow-up to capitalize on strong demo engagement and technical interest shown"
}`

const oldSnapshot = `{
  "primary_type": "deal",
  "primary_record": {"id": "deal-7", "stage": "demo"},
  "related_entities": {"contacts": [{"id": "c1", "name": "Ann"}]},
  "metadata": {"duration_ms": 10}
}`

const newSnapshot = `{
  "primary_type": "deal",
  "primary_record": {"id": "deal-7", "stage": "proposal"},
  "related_entities": {"contacts": [{"id": "c1", "name": "Ann"}, {"id": "c2", "name": "Bo"}]},
  "metadata": {"duration_ms": 99}
}`

type testEnv struct {
	dir    string
	config string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := "data_dir: " + dir + "\n" +
		"debug_dir: " + filepath.Join(dir, "debug") + "\n" +
		"log_level: error\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &testEnv{dir: dir, config: path}
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRoot("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestDiffCommand(t *testing.T) {
	env := setupEnv(t)
	oldPath := env.write(t, "old.json", oldSnapshot)
	newPath := env.write(t, "new.json", newSnapshot)

	out, err := env.run(t, "", "diff", oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, out, "## Summary of Changes")
	assert.Contains(t, out, "Contacts: 1 added")
	assert.NotContains(t, out, "duration_ms")

	out, err = env.run(t, "", "diff", "--json", oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"collection_diffs"`)

	_, err = env.run(t, "", "diff", oldPath)
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	env := setupEnv(t)
	path := env.write(t, "response.txt", "```json\n"+validResponse+"\n```")

	out, err := env.run(t, "", "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Parsed via fenced tier")
	assert.Contains(t, out, "Acme Corp Deal (deal-7)")
	assert.Contains(t, out, "[P0] phone")

	out, err = env.run(t, validResponse, "parse", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"deal_id": "deal-7"`)
}

func TestParseCommandTotalFailure(t *testing.T) {
	env := setupEnv(t)

	out, err := env.run(t, "no json here", "parse")
	var total *parser.TotalFailureError
	require.ErrorAs(t, err, &total)
	assert.Contains(t, out, "No parsing tier produced a valid recommendation")
	require.NotEmpty(t, total.DumpPath)
	assert.Equal(t, filepath.Join(env.dir, "debug"), filepath.Dir(total.DumpPath))
	assert.FileExists(t, total.DumpPath)
}

func TestFeedbackAndContextCommands(t *testing.T) {
	env := setupEnv(t)

	out, err := env.run(t, "", "feedback",
		"--recommendation", "rec-1", "--deal", "deal-7",
		"--priority", "P0", "--channel", "email", "--type", "positive",
		"--text", "loved it", "--worked", "Subject lines naming their project")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Feedback recorded #1")
	assert.Contains(t, out, "Email Engagement Learnings (context v1.0.1)")

	out, err = env.run(t, "", "context", "show", "--section", "Email Engagement Learnings")
	require.NoError(t, err)
	assert.Contains(t, out, "Subject lines naming their project _(Context: P0 email action)_")

	out, err = env.run(t, "", "feedback", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "rec-1")
	assert.Contains(t, out, "1 total, 1 context updates")

	_, err = env.run(t, "", "feedback", "--recommendation", "rec-2", "--text", "x", "--type", "great")
	assert.Error(t, err)
}

func TestContextUpdateCommand(t *testing.T) {
	env := setupEnv(t)

	out, err := env.run(t, "Lead with the ROI calculator.", "context", "update", "Positioning")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Updated Positioning: v1.0.0 → v1.0.1")

	out, err = env.run(t, "", "context", "show", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "(v1.0.1)")
	assert.Contains(t, out, "- Positioning")

	_, err = env.run(t, "", "context", "show", "--section", "Nope")
	assert.Error(t, err)
}

func TestCacheCommands(t *testing.T) {
	env := setupEnv(t)

	out, err := env.run(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "entity_cache")
	assert.Contains(t, out, "summary_cache")
	assert.Contains(t, out, "recommendation_cache")

	out, err = env.run(t, "", "cache", "sweep", "--policy", "summary_cache")
	require.NoError(t, err)
	assert.Equal(t, "summary_cache: removed 0 expired\n", out)

	_, err = env.run(t, "", "cache", "clear", "--policy", "nope")
	assert.Error(t, err)
}

func TestRecommendAndSummarizeCommands(t *testing.T) {
	env := setupEnv(t)
	snapPath := env.write(t, "deal.json", newSnapshot)
	env.write(t, "response.json", validResponse)
	script := env.write(t, "gen.sh", "cat > /dev/null\ncat "+filepath.Join(env.dir, "response.json")+"\n")

	out, err := env.run(t, "", "recommend", "--generator", "sh "+script, snapPath)
	require.NoError(t, err)
	assert.Contains(t, out, "generated (miss)")
	assert.Contains(t, out, "Acme Corp Deal (deal-7)")

	out, err = env.run(t, "", "recommend", "--generator", "sh "+script, snapPath)
	require.NoError(t, err)
	assert.Contains(t, out, "cached")

	out, err = env.run(t, "", "summarize", "--generator", "cat", snapPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Summarize the current state of this deal")

	_, err = env.run(t, "", "summarize", snapPath)
	assert.ErrorContains(t, err, "no generator configured")
}

func TestDashboardCommand(t *testing.T) {
	env := setupEnv(t)

	out, err := env.run(t, "", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "ENGAGE DASHBOARD")
	assert.Contains(t, out, "COMPANY CONTEXT")
}
