package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/actionplan/internal/ir"
)

// Scenario describes one plan to run and what to check afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Action is the root action kind to plan.
	Action string `yaml:"action"`

	// Args are the positional arguments of the root action's Plan hook.
	Args []any `yaml:"args,omitempty"`

	// Workers overrides the engine's worker count. 0 keeps the default.
	Workers int `yaml:"workers,omitempty"`

	// Timeout bounds execution. Defaults to DefaultTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Assertions validate the finished plan.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultTimeout bounds scenarios that set no timeout.
const DefaultTimeout = 10 * time.Second

// Assertion validates the finished plan.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is the action kind (action_state, action_output, action_input,
	// action_count).
	Action string `yaml:"action,omitempty"`

	// Index picks the Nth action of the kind in plan order.
	Index int `yaml:"index,omitempty"`

	// Status is the expected plan status (plan_status).
	Status string `yaml:"status,omitempty"`

	// State is the expected action state (action_state).
	State string `yaml:"state,omitempty"`

	// Output is a subset of the expected output (action_output).
	Output map[string]any `yaml:"output,omitempty"`

	// Input is a subset of the expected resolved input (action_input).
	Input map[string]any `yaml:"input,omitempty"`

	// Count is the expected number of actions of the kind (action_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected run order (run_before).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertPlanStatus   = "plan_status"
	AssertActionState  = "action_state"
	AssertActionOutput = "action_output"
	AssertActionInput  = "action_input"
	AssertActionCount  = "action_count"
	AssertRunBefore    = "run_before"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// IRArgs converts the YAML arguments to IR values.
func (s *Scenario) IRArgs() ([]ir.IRValue, error) {
	args := make([]ir.IRValue, len(s.Args))
	for i, a := range s.Args {
		v, err := ir.ToIRValue(a)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Action == "" {
		return fmt.Errorf("action is required")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := s.IRArgs(); err != nil {
		return err
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Index < 0 {
		return fmt.Errorf("assertions[%d]: index must be non-negative", index)
	}

	switch a.Type {
	case AssertPlanStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for plan_status", index)
		}
	case AssertActionState:
		if a.Action == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: action and state are required for action_state", index)
		}
	case AssertActionOutput:
		if a.Action == "" || len(a.Output) == 0 {
			return fmt.Errorf("assertions[%d]: action and output are required for action_output", index)
		}
	case AssertActionInput:
		if a.Action == "" || len(a.Input) == 0 {
			return fmt.Errorf("assertions[%d]: action and input are required for action_input", index)
		}
	case AssertActionCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for action_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for action_count", index)
		}
	case AssertRunBefore:
		if len(a.Actions) < 2 {
			return fmt.Errorf("assertions[%d]: at least two actions are required for run_before", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
