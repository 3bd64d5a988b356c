package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/queryir"
	"github.com/roach88/actionplan/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	PlanID   string
	Action   string   // optional - filter to one action definition
	Where    []string // field=value terms, see queryir.ParseFilter

	// Unfinished lists plans interrupted before their final status.
	Unfinished bool
}

// TraceEvent is a single phase transition in the trace timeline.
type TraceEvent struct {
	Seq       int64          `json:"seq"`
	ActionID  int64          `json:"action_id"`
	Action    string         `json:"action"`
	Phase     string         `json:"phase"`
	State     string         `json:"state"`
	Progress  int64          `json:"progress"`
	Input     map[string]any `json:"input,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// TraceResult holds the complete trace of one plan.
type TraceResult struct {
	Plan     ir.PlanRecord `json:"plan"`
	Finished bool          `json:"finished"`
	Timeline []TraceEvent  `json:"timeline"`
	Actions  []ActionView  `json:"actions"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Actions     int            `json:"actions"`
	States      map[string]int `json:"states"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect journaled plans",
		Long: `Inspect plans recorded in a SQLite journal.

Without --plan, lists every journaled plan with its status and progress.
With --plan, shows the plan's timeline of phase transitions followed by
the final state of each action as rebuilt from the journal.

Examples:
  actionplan trace --db ./actionplan.db
  actionplan trace --db ./actionplan.db --plan 0192...
  actionplan trace --db ./actionplan.db --plan 0192... --action Review
  actionplan trace --db ./actionplan.db --plan 0192... --format json
  actionplan trace --db ./actionplan.db --where status=error|cancelled
  actionplan trace --db ./actionplan.db --plan 0192... --where state=error_run --where seq>=10

--where filters plans (id, root_action, status, progress, first_seq,
last_seq) or, with --plan, timeline events (action, phase, state,
error_kind, action_id, parent_id, trigger_id, seq, progress).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.PlanID, "plan", "", "plan ID to trace")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter timeline to one action name")
	cmd.Flags().BoolVar(&opts.Unfinished, "unfinished", false, "list only plans that never reached a final status")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter term field=value, field=a|b or field>=n (repeatable)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.PlanID == "" {
		filter, err := queryir.ParseFilter(queryir.PlanFields, opts.Where)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --where", err)
		}
		var plans []ir.PlanRecord
		if opts.Unfinished {
			if filter != nil {
				return NewExitError(ExitCommandError, "--unfinished cannot be combined with --where")
			}
			plans, err = st.FindUnfinishedPlans(ctx)
		} else {
			plans, err = st.QueryPlans(ctx, queryir.Plans{Filter: filter})
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list plans", err)
		}
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: plans})
		}
		outputPlanList(cmd.OutOrStdout(), plans)
		return nil
	}

	state, err := st.ReplayPlan(ctx, opts.PlanID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("plan not found: %s", opts.PlanID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay plan", err)
	}
	terms := opts.Where
	if opts.Action != "" {
		terms = append([]string{"action=" + opts.Action}, terms...)
	}
	filter, err := queryir.ParseFilter(queryir.EventFields, terms)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --where", err)
	}
	events, err := st.QueryEvents(ctx, queryir.Events{Plan: opts.PlanID, Filter: filter})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read plan events", err)
	}

	result := TraceResult{
		Plan:     state.Plan,
		Finished: state.Finished,
		Timeline: buildTimeline(events),
		Actions:  make([]ActionView, 0, len(state.Actions)),
		Stats: TraceStats{
			Actions: len(state.Actions),
			States:  make(map[string]int),
		},
	}
	for _, a := range state.Actions {
		result.Actions = append(result.Actions, newActionView(a))
		result.Stats.States[a.State]++
	}
	result.Stats.TotalEvents = len(result.Timeline)

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildTimeline converts journaled events to timeline entries.
func buildTimeline(events []ir.ActionEvent) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		timeline = append(timeline, TraceEvent{
			Seq:       ev.Seq,
			ActionID:  ev.ActionID,
			Action:    ev.Action,
			Phase:     string(ev.Phase),
			State:     ev.State,
			Progress:  ev.Progress,
			Input:     irObjectToMap(ev.Input),
			Output:    irObjectToMap(ev.Output),
			ErrorKind: ev.ErrorKind,
			Error:     ev.Error,
		})
	}
	return timeline
}

// irObjectToMap converts an ir.IRObject to a plain map.
func irObjectToMap(obj ir.IRObject) map[string]any {
	if obj == nil {
		return nil
	}

	result := make(map[string]any, len(obj))
	for k, v := range obj {
		result[k] = irValueToInterface(v)
	}
	return result
}

// irValueToInterface converts an ir.IRValue to a plain Go value.
func irValueToInterface(v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRBool:
		return bool(val)
	case ir.IRArray:
		result := make([]any, len(val))
		for i, elem := range val {
			result[i] = irValueToInterface(elem)
		}
		return result
	case ir.IRObject:
		return irObjectToMap(val)
	case ir.IRRef:
		return val.String()
	default:
		return nil
	}
}

// formatProgress renders a value on the ProgressScale as a percentage.
func formatProgress(p int64) string {
	return fmt.Sprintf("%d.%02d%%", p*100/ir.ProgressScale, p*10000/ir.ProgressScale%100)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputPlanList(w io.Writer, plans []ir.PlanRecord) {
	if len(plans) == 0 {
		fmt.Fprintln(w, "No plans found.")
		return
	}
	for _, p := range plans {
		fmt.Fprintf(w, "%s  %-20s %-10s %s\n", p.ID, p.RootAction, p.Status, formatProgress(p.Progress))
	}
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Plan: %s (%s)\n", result.Plan.ID, result.Plan.RootAction)
	fmt.Fprintf(w, "Status: %s (%s)\n", finishedStatus(result), formatProgress(result.Plan.Progress))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Actions ===")
	for _, a := range result.Actions {
		printActionLine(w, a)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Actions:      %d\n", result.Stats.Actions)
	states := make([]string, 0, len(result.Stats.States))
	for s := range result.Stats.States {
		states = append(states, s)
	}
	sort.Strings(states)
	for _, s := range states {
		fmt.Fprintf(w, "  %-13s %d\n", s+":", result.Stats.States[s])
	}
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, ev TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] #%d %s %s/%s", ev.Seq, ev.ActionID, ev.Action, ev.Phase, ev.State)
	if ev.Phase == string(ir.PhaseRun) && ev.Progress > 0 {
		fmt.Fprintf(w, " %s", formatProgress(ev.Progress))
	}
	fmt.Fprintln(w)
	if ev.Error != "" {
		fmt.Fprintf(w, "       Error: [%s] %s\n", ev.ErrorKind, ev.Error)
	}
	if !verbose {
		return
	}
	if len(ev.Input) > 0 {
		fmt.Fprintf(w, "       Input: %s\n", formatArgs(ev.Input))
	}
	if len(ev.Output) > 0 {
		fmt.Fprintf(w, "       Output: %s\n", formatArgs(ev.Output))
	}
}

// formatArgs formats a record for display with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

func finishedStatus(r TraceResult) string {
	if r.Finished {
		return r.Plan.Status
	}
	return r.Plan.Status + ", interrupted"
}
