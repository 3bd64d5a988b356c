package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/store"
	"github.com/roach88/actionplan/internal/testutil"
	"github.com/roach88/actionplan/internal/tracing"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func executeRun(t *testing.T, opts *RunOptions, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRunCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunMissingArgs(t *testing.T) {
	_, _, err := executeRun(t, &RunOptions{RootOptions: testRootOptions("text")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunNonExistentScenario(t *testing.T) {
	_, _, err := executeRun(t, &RunOptions{RootOptions: testRootOptions("text")}, "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunScenario_Text(t *testing.T) {
	opts := &RunOptions{
		RootOptions: testRootOptions("text"),
		PlanIDs:     testutil.NewSequentialGenerator("run"),
	}

	out, _, err := executeRun(t, opts, filepath.Join(scenariosDir, "incoming_issue.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ incoming_issue")
	assert.Contains(t, out, "Plan: run-1")
	assert.Contains(t, out, "Status: success (100.00%)")
	assert.Contains(t, out, "Triage")
	assert.Contains(t, out, "NotifyAssignee")
}

func TestRunScenario_JSON(t *testing.T) {
	opts := &RunOptions{
		RootOptions: testRootOptions("json"),
		PlanIDs:     testutil.NewSequentialGenerator("run"),
	}

	out, _, err := executeRun(t, opts, filepath.Join(scenariosDir, "commit_rejected_review.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "commit_rejected_review", resp.Data.Scenario)
	assert.Equal(t, "run-1", resp.Data.PlanID)
	assert.Equal(t, "success", resp.Data.Status)
	assert.Equal(t, int64(10000), resp.Data.Progress)
	assert.True(t, resp.Data.Pass)
	assert.Empty(t, resp.Data.Errors)

	var merge *ActionView
	for i := range resp.Data.Actions {
		if resp.Data.Actions[i].Action == "Merge" {
			merge = &resp.Data.Actions[i]
		}
	}
	require.NotNil(t, merge)
	assert.Equal(t, "success", merge.State)
	assert.Equal(t, map[string]any{"passed": false}, merge.Output)
	assert.NotEmpty(t, merge.DependsOn)
}

func TestRunScenario_FailedAssertions(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "wrong.yaml", `
name: wrong
action: FastCommit
args:
  - { sha: abc123 }
assertions:
  - type: plan_status
    status: error
`)

	out, _, err := executeRun(t, &RunOptions{RootOptions: testRootOptions("text")}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 assertion(s) failed")
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Assertion failed: plan_status")
}

func TestRunScenario_UnknownAction(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "unknown.yaml", `
name: unknown
action: Deploy
assertions:
  - type: plan_status
    status: success
`)

	_, _, err := executeRun(t, &RunOptions{RootOptions: testRootOptions("text")}, path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to plan scenario")
}

func TestRunScenario_PersistentJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "actionplan.db")
	scenario := filepath.Join(scenariosDir, "incoming_issue.yaml")

	for range 2 {
		opts := &RunOptions{RootOptions: testRootOptions("text")}
		_, _, err := executeRun(t, opts, "--db", dbPath, scenario)
		require.NoError(t, err)
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	plans, err := st.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.NotEqual(t, plans[0].ID, plans[1].ID)
	assert.Equal(t, "IncomingIssue", plans[1].RootAction)
	assert.Equal(t, "success", plans[1].Status)
	// The second run continues the logical clock of the first.
	assert.Greater(t, plans[1].FirstSeq, plans[0].LastSeq)
}

func TestRunScenario_DatabaseFromConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "from-config.db")
	root := testRootOptions("text")
	root.Config.Database = dbPath

	_, _, err := executeRun(t, &RunOptions{RootOptions: root}, filepath.Join(scenariosDir, "incoming_issue.yaml"))
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestRunScenario_Metrics(t *testing.T) {
	opts := &RunOptions{RootOptions: testRootOptions("text")}

	_, stderr, err := executeRun(t, opts, "--metrics", filepath.Join(scenariosDir, "commit_rejected_review.yaml"))
	require.NoError(t, err)

	assert.Contains(t, stderr, "# TYPE actionplan_engine_plans_finished_total counter")
	assert.Contains(t, stderr, `actionplan_engine_plans_finished_total{root="Commit",status="success"} 1`)
	assert.Contains(t, stderr, "actionplan_engine_phase_duration_seconds_bucket")
}

func TestRunScenario_Tracing(t *testing.T) {
	var (
		mu    sync.Mutex
		spans []byte
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		spans = append(spans, body...)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer collector.Close()

	root := testRootOptions("text")
	root.Config.Tracing = tracing.Config{Enabled: true, Exporter: "zipkin", Endpoint: collector.URL}

	_, _, err := executeRun(t, &RunOptions{RootOptions: root}, filepath.Join(scenariosDir, "commit_rejected_review.yaml"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, string(spans), tracing.SpanPlan)
	assert.Contains(t, string(spans), tracing.SpanRun)
	assert.Contains(t, string(spans), `"Merge"`)
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "0.00%", formatProgress(0))
	assert.Equal(t, "12.34%", formatProgress(1234))
	assert.Equal(t, "45.00%", formatProgress(4500))
	assert.Equal(t, "100.00%", formatProgress(10000))
}
