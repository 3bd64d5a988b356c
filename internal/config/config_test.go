package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/codeflow"
	"github.com/roach88/actionplan/internal/engine"
	"github.com/roach88/actionplan/internal/ir"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, engine.DefaultWorkers, cfg.Workers)
	assert.Equal(t, engine.DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, engine.DefaultMaxNodes, cfg.MaxNodes)
	assert.Empty(t, cfg.Database)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
version: 1
workers: 8
poll_interval: 250ms
max_nodes: 0
database: plans.db
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 0, cfg.MaxNodes)
	assert.Equal(t, "plans.db", cfg.Database)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.False(t, cfg.Tracing.Enabled)
}

func TestParse_Tracing(t *testing.T) {
	cfg, err := Parse([]byte(`
tracing:
  enabled: true
  exporter: zipkin
  endpoint: http://collector:9411/api/v2/spans
  sample_rate: 0.25
`))
	require.NoError(t, err)

	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "zipkin", cfg.Tracing.Exporter)
	assert.Equal(t, "http://collector:9411/api/v2/spans", cfg.Tracing.Endpoint)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, engine.DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, CurrentVersion, cfg.Version)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "threads: 3\n", "threads"},
		{"bad version", "version: 2\n", "unsupported config version"},
		{"zero workers", "workers: 0\n", "workers must be at least 1"},
		{"negative poll", "poll_interval: -1s\n", "poll_interval must be positive"},
		{"negative quota", "max_nodes: -5\n", "max_nodes must not be negative"},
		{"negative poll rate", "poll_rate: -1\n", "poll_rate must not be negative"},
		{"zero burst", "poll_burst: 0\n", "poll_burst must be at least 1"},
		{"bad level", "log_level: loud\n", `unknown log_level "loud"`},
		{"bad duration", "poll_interval: soon\n", "parse config"},
		{"bad exporter", "tracing:\n  enabled: true\n  exporter: jaeger\n", "unsupported exporter"},
		{"unknown tracing key", "tracing:\n  host: x\n", "host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "actionplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.Level())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.MaxNodes = 2

	reg, err := codeflow.NewRegistry()
	require.NoError(t, err)

	var plans int
	obs := engine.ObserverFuncs{OnPlan: func(ir.PlanEvent) { plans++ }}
	opts := cfg.Options(obs)
	assert.Len(t, opts, 4)

	e := engine.New(reg, opts...)
	_, err = e.Plan("Commit", ir.IRObject{"sha": ir.IRString("abc")})
	require.Error(t, err)
	assert.True(t, engine.IsNodesExceededError(err), "max_nodes reaches the planner")

	_, err = e.Plan("Dummy")
	require.NoError(t, err)
	assert.Equal(t, 1, plans, "observers are attached")
}

func TestOptions_PollRate(t *testing.T) {
	cfg, err := Parse([]byte("poll_rate: 20\npoll_burst: 5\n"))
	require.NoError(t, err)
	assert.Len(t, cfg.Options(), 4, "poll_rate adds an option")

	assert.Len(t, Default().Options(), 3, "unlimited by default")
}
