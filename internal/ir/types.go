package ir

// Phase names the lifecycle phase an ActionEvent belongs to.
type Phase string

const (
	PhasePlan     Phase = "plan"
	PhaseRun      Phase = "run"
	PhaseFinalize Phase = "finalize"
)

// ProgressScale is the fixed-point denominator for progress values carried
// in events. 10000 means complete.
const ProgressScale = 10000

// ActionEvent is one action state transition. Observers receive it at every
// phase boundary and the journal stores it verbatim.
type ActionEvent struct {
	ID        string   `json:"id"` // Content-addressed, see EventID
	PlanID    string   `json:"plan_id"`
	ActionID  int64    `json:"action_id"`
	Action    string   `json:"action"` // Definition name, e.g. "Triage"
	Phase     Phase    `json:"phase"`
	State     string   `json:"state"`
	Seq       int64    `json:"seq"` // Logical clock
	ParentID  int64    `json:"parent_id,omitempty"`
	TriggerID int64    `json:"trigger_id,omitempty"`
	DependsOn []int64  `json:"depends_on,omitempty"`
	Input     IRObject `json:"input,omitempty"`
	Output    IRObject `json:"output,omitempty"`
	Progress  int64    `json:"progress"` // Run progress scaled by ProgressScale
	ErrorKind string   `json:"error_kind,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// PlanEvent is a plan-level status change.
type PlanEvent struct {
	PlanID     string `json:"plan_id"`
	RootAction string `json:"root_action"`
	Status     string `json:"status"`
	Seq        int64  `json:"seq"`
	Progress   int64  `json:"progress"` // Plan progress scaled by ProgressScale
}

// PlanRecord summarizes a journaled plan.
type PlanRecord struct {
	ID         string `json:"id"`
	RootAction string `json:"root_action"`
	Status     string `json:"status"`
	Progress   int64  `json:"progress"`
	FirstSeq   int64  `json:"first_seq"`
	LastSeq    int64  `json:"last_seq"`
}
