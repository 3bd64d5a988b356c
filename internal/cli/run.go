package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/actionplan/internal/engine"
	"github.com/roach88/actionplan/internal/harness"
	"github.com/roach88/actionplan/internal/metrics"
	"github.com/roach88/actionplan/internal/store"
	"github.com/roach88/actionplan/internal/tracing"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Metrics  bool

	// PlanIDs overrides the plan ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	PlanIDs engine.PlanIDGenerator
}

// ActionView is one action of a finished plan as printed by the CLI.
type ActionView struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	ParentID  int64          `json:"parent_id,omitempty"`
	TriggerID int64          `json:"trigger_id,omitempty"`
	DependsOn []int64        `json:"depends_on,omitempty"`
	State     string         `json:"state"`
	Input     map[string]any `json:"input,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string       `json:"scenario"`
	PlanID   string       `json:"plan_id"`
	Status   string       `json:"status"`
	Progress int64        `json:"progress"`
	Pass     bool         `json:"pass"`
	Actions  []ActionView `json:"actions"`
	Errors   []string     `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Plan and execute a scenario",
		Long: `Plan the scenario's root action, execute it to completion and check
its assertions.

Every phase transition is journaled. With --db (or "database" in the
config file) the journal is kept in that SQLite file so the plan can be
inspected later with "actionplan trace"; otherwise an in-memory journal
is used. When the config file enables tracing, every plan and action
phase is exported as an OpenTelemetry span.

Exit codes:
  0 - Plan finished and all assertions held
  1 - One or more assertions failed
  2 - Command error (unknown action, unreadable scenario, etc.)

Examples:
  actionplan run ./scenarios/commit.yaml
  actionplan run --db ./actionplan.db ./scenarios/commit.yaml
  actionplan run --metrics --format json ./scenarios/commit.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides config)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics after the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	reg, err := opts.Registry()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build registry", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := harness.Env{Options: opts.Config.Options()}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.Database
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		env.Store = st
		slog.Info("journal ready", "path", dbPath)
	}
	if opts.PlanIDs != nil {
		env.Options = append(env.Options, engine.WithPlanIDGenerator(opts.PlanIDs))
	}

	if opts.Config.Tracing.Enabled {
		tp, err := tracing.NewProvider(ctx, opts.Config.Tracing)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start tracing", err)
		}
		defer func() {
			// The run context may already be cancelled; spans still need flushing.
			if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.Error("error flushing spans", "error", err)
			}
		}()
		env.Options = append(env.Options, engine.WithObserver(tracing.NewObserver(tp.Tracer())))
	}

	promReg := prometheus.NewRegistry()
	if opts.Metrics {
		env.Options = append(env.Options, engine.WithObserver(metrics.MustNew(promReg)))
	}

	result, err := harness.RunIn(ctx, scenario, reg, env)
	if err != nil {
		if engine.IsUnknownAction(err) || engine.IsNodesExceededError(err) {
			return WrapExitError(ExitCommandError, "failed to plan scenario", err)
		}
		return WrapExitError(ExitFailure, "scenario did not finish", err)
	}

	out := newRunResult(scenario.Name, result)
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: w}
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printRunText(w, out)
	}

	if opts.Metrics {
		if err := writeMetrics(cmd.ErrOrStderr(), promReg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}

func newRunResult(name string, r *harness.Result) RunResult {
	out := RunResult{
		Scenario: name,
		PlanID:   r.PlanID,
		Status:   r.Status,
		Progress: r.Progress,
		Pass:     r.Pass,
		Actions:  make([]ActionView, 0, len(r.Actions)),
		Errors:   r.Errors,
	}
	for _, a := range r.Actions {
		out.Actions = append(out.Actions, newActionView(a))
	}
	return out
}

func newActionView(a store.ActionState) ActionView {
	return ActionView{
		ID:        a.ID,
		Action:    a.Action,
		ParentID:  a.ParentID,
		TriggerID: a.TriggerID,
		DependsOn: a.DependsOn,
		State:     a.State,
		Input:     irObjectToMap(a.Input),
		Output:    irObjectToMap(a.Output),
		ErrorKind: a.ErrorKind,
		Error:     a.Error,
	}
}

func printRunText(w io.Writer, r RunResult) {
	fmt.Fprintf(w, "%s %s\n", mark(r.Pass), r.Scenario)
	fmt.Fprintf(w, "Plan: %s\n", r.PlanID)
	fmt.Fprintf(w, "Status: %s (%s)\n", r.Status, formatProgress(r.Progress))
	fmt.Fprintln(w)
	for _, a := range r.Actions {
		printActionLine(w, a)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "\n%s", e)
	}
}

func printActionLine(w io.Writer, a ActionView) {
	fmt.Fprintf(w, "  #%-3d %-20s %s", a.ID, a.Action, a.State)
	if len(a.DependsOn) > 0 {
		fmt.Fprintf(w, "  after %v", a.DependsOn)
	}
	if a.Error != "" {
		fmt.Fprintf(w, "  [%s] %s", a.ErrorKind, a.Error)
	}
	fmt.Fprintln(w)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
