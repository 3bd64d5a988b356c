package codeflow

import (
	"context"
	_ "embed"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/actionplan/internal/compiler"
	"github.com/roach88/actionplan/internal/engine"
	"github.com/roach88/actionplan/internal/ir"
)

//go:embed catalog.cue
var catalogSrc []byte

// Catalog is the compiled schema catalog.
var Catalog = compiler.MustCompileSource("catalog.cue", catalogSrc)

// Pauser parks a hook until the caller lets it continue.
// *testutil.Gate implements it.
type Pauser interface {
	Pause(ctx context.Context) error
}

// Option configures the fixtures.
type Option func(*fixtures)

// WithPauser makes Triage pause on texts containing "get a break" and
// DummySuspended pause on "pause in progress N".
func WithPauser(p Pauser) Option {
	return func(f *fixtures) { f.pauser = p }
}

type fixtures struct {
	pauser Pauser
}

func (f *fixtures) pause(ctx context.Context) error {
	if f.pauser == nil {
		return nil
	}
	return f.pauser.Pause(ctx)
}

// NewRegistry returns a validated registry holding every fixture.
func NewRegistry(opts ...Option) (*engine.Registry, error) {
	return Catalog.Registry(Definitions(opts...)...)
}

// Definitions returns fresh definitions for every fixture, bound to the
// catalog schemas.
func Definitions(opts ...Option) []*engine.Definition {
	f := &fixtures{}
	for _, opt := range opts {
		opt(f)
	}
	defs := []*engine.Definition{
		f.incomingIssues(),
		f.slow(),
		f.incomingIssue(),
		f.triage(),
		{Name: "UpdateIssue", Run: noop},
		f.notifyAssignee(),
		f.commit(),
		f.fastCommit(),
		f.ci(),
		f.review(),
		f.merge(),
		{Name: "Dummy"},
		{Name: "DummyWithFinalize", Finalize: noop},
		{Name: "DummyTrigger"},
		{Name: "DummyAnotherTrigger"},
		{Name: "DummySubscribe", Run: noop},
		{Name: "DummyMultiSubscribe", Run: noop},
		f.dummySuspended(),
		f.dummyHeavyProgress(),
	}
	return Catalog.Bind(defs...)
}

func noop(context.Context, *engine.Action) error { return nil }

func arg(args []ir.IRValue, i int) ir.IRValue {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func (f *fixtures) incomingIssues() *engine.Definition {
	return &engine.Definition{
		Name: "IncomingIssues",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			issues, _ := arg(args, 0).(ir.IRArray)
			if issues == nil {
				issues = ir.IRArray{}
			}
			_, err := p.Concurrence(func(s *engine.Scope) error {
				for _, issue := range issues {
					if _, err := s.PlanAction("IncomingIssue", issue); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			_, err = p.PlanSelf(ir.IRObject{"issues": issues})
			return err
		},
		Finalize: noop,
		Summary: func(p *engine.Plan, a *engine.Action) ir.IRObject {
			assignees := ir.IRArray{}
			seen := make(map[string]bool)
			for _, d := range a.Descendants() {
				if d.Name() != "Triage" {
					continue
				}
				name := d.Output().String("classification", "assignee")
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				assignees = append(assignees, ir.IRString(name))
			}
			return ir.IRObject{"assignees": assignees}
		},
	}
}

func (f *fixtures) slow() *engine.Definition {
	return &engine.Definition{
		Name: "Slow",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			ms, _ := arg(args, 0).(ir.IRInt)
			_, err := p.PlanSelf(ir.IRObject{"interval_ms": ms})
			return err
		},
		Run: func(ctx context.Context, a *engine.Action) error {
			t := time.NewTimer(time.Duration(a.Input().Int("interval_ms")) * time.Millisecond)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return ctx.Err()
			}
			slog.Debug("done with sleeping", "action_id", a.ID())
			return nil
		},
	}
}

func (f *fixtures) incomingIssue() *engine.Definition {
	return &engine.Definition{
		Name: "IncomingIssue",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			issue := arg(args, 0)
			if _, err := p.PlanSelf(issue); err != nil {
				return err
			}
			_, err := p.PlanAction("Triage", issue)
			return err
		},
	}
}

func (f *fixtures) triage() *engine.Definition {
	return &engine.Definition{
		Name: "Triage",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			triage, err := p.PlanSelf(arg(args, 0))
			if err != nil {
				return err
			}
			in := triage.PlannedInput()
			_, err = p.PlanAction("UpdateIssue", ir.IRObject{
				"author":   in["author"],
				"text":     in["text"],
				"assignee": triage.OutputRef("classification", "assignee"),
				"severity": triage.OutputRef("classification", "severity"),
			})
			return err
		},
		Run: func(ctx context.Context, a *engine.Action) error {
			text := a.Input().String("text")
			if strings.Contains(text, "get a break") {
				if err := f.pause(ctx); err != nil {
					return err
				}
			}
			if text == "trolling" {
				return engine.Fail("Trolling detected")
			}
			return a.Output().Set("classification", ir.IRObject{
				"assignee": ir.IRString("John Doe"),
				"severity": ir.IRString("medium"),
			})
		},
		Finalize: func(ctx context.Context, a *engine.Action) error {
			if a.Input().String("text") == "trolling in finalize" {
				return engine.Fail("Trolling detected")
			}
			return nil
		},
	}
}

func (f *fixtures) notifyAssignee() *engine.Definition {
	return &engine.Definition{
		Name: "NotifyAssignee",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			_, err := p.PlanSelf(ir.IRObject{"triage": p.Trigger().OutputRef()})
			return err
		},
		Run:      noop,
		Finalize: noop,
	}
}

// defaultReviews is what Commit plans when no reviews are given.
var defaultReviews = ir.IRObject{
	"Morfeus": ir.IRBool(true),
	"Neo":     ir.IRBool(true),
}

func (f *fixtures) commit() *engine.Definition {
	return &engine.Definition{
		Name: "Commit",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			commit := arg(args, 0)
			reviews, ok := arg(args, 1).(ir.IRObject)
			if !ok {
				reviews = defaultReviews
			}

			var ci *engine.Action
			var reviewActions []*engine.Action
			_, err := p.Concurrence(func(s *engine.Scope) error {
				var err error
				if ci, err = s.PlanAction("Ci", ir.IRObject{"commit": commit}); err != nil {
					return err
				}
				for _, name := range reviews.SortedKeys() {
					r, err := s.PlanAction("Review", commit, ir.IRString(name), reviews[name])
					if err != nil {
						return err
					}
					reviewActions = append(reviewActions, r)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return planMerge(p.Scope, commit, ci, reviewActions...)
		},
	}
}

func (f *fixtures) fastCommit() *engine.Definition {
	return &engine.Definition{
		Name: "FastCommit",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			commit := arg(args, 0)

			var ci, review *engine.Action
			_, err := p.Concurrence(func(s *engine.Scope) error {
				var err error
				if ci, err = s.PlanAction("Ci", ir.IRObject{"commit": commit}); err != nil {
					return err
				}
				review, err = s.PlanAction("Review", commit, ir.IRString("Morfeus"), ir.IRBool(true))
				return err
			})
			if err != nil {
				return err
			}
			return planMerge(p.Scope, commit, ci, review)
		},
	}
}

// planMerge plans a Merge fed by the whole outputs of ci and reviews.
func planMerge(s *engine.Scope, commit ir.IRValue, ci *engine.Action, reviews ...*engine.Action) error {
	results := make(ir.IRArray, len(reviews))
	for i, r := range reviews {
		results[i] = r.OutputRef()
	}
	_, err := s.PlanAction("Merge", ir.IRObject{
		"commit":         commit,
		"ci_result":      ci.OutputRef(),
		"review_results": results,
	})
	return err
}

func (f *fixtures) ci() *engine.Definition {
	return &engine.Definition{
		Name: "Ci",
		Run: func(ctx context.Context, a *engine.Action) error {
			return a.Output().Set("passed", ir.IRBool(true))
		},
	}
}

func (f *fixtures) review() *engine.Definition {
	return &engine.Definition{
		Name: "Review",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			result, ok := arg(args, 2).(ir.IRBool)
			if !ok {
				result = true
			}
			_, err := p.PlanSelf(ir.IRObject{
				"commit":   arg(args, 0),
				"reviewer": arg(args, 1),
				"result":   result,
			})
			return err
		},
		Run: func(ctx context.Context, a *engine.Action) error {
			return a.Output().Set("passed", ir.IRBool(a.Input().Bool("result")))
		},
	}
}

func (f *fixtures) merge() *engine.Definition {
	return &engine.Definition{
		Name: "Merge",
		Run: func(ctx context.Context, a *engine.Action) error {
			in := a.Input()
			passed := in.Bool("ci_result", "passed")
			results, _ := in["review_results"].(ir.IRArray)
			for _, r := range results {
				review, _ := r.(ir.IRObject)
				passed = passed && review.Bool("passed")
			}
			return a.Output().Set("passed", ir.IRBool(passed))
		},
	}
}

var pauseAt = regexp.MustCompile(`pause in progress (\d+)`)

func (f *fixtures) dummySuspended() *engine.Definition {
	return &engine.Definition{
		Name: "DummySuspended",
		Polling: &engine.ExternalTask{
			Invoke: func(ctx context.Context, a *engine.Action) (ir.IRObject, error) {
				if a.Input().String("text") == "troll setup" {
					return nil, engine.Fail("Trolling detected")
				}
				return ir.IRObject{"progress": ir.IRInt(0), "done": ir.IRBool(false)}, nil
			},
			Poll: func(ctx context.Context, a *engine.Action) (ir.IRObject, error) {
				text := a.Input().String("text")
				out := a.Output()
				if text == "troll progress" && !out.Bool("trolled") {
					if err := out.Set("trolled", ir.IRBool(true)); err != nil {
						return nil, err
					}
					return nil, engine.Fail("Trolling detected")
				}
				if m := pauseAt.FindStringSubmatch(text); m != nil {
					if at, _ := strconv.ParseInt(m[1], 10, 64); out.Int("progress") == at {
						if err := f.pause(ctx); err != nil {
							return nil, err
						}
					}
				}
				progress := out.Int("progress") + 10
				return ir.IRObject{
					"progress": ir.IRInt(progress),
					"done":     ir.IRBool(progress >= 100),
				}, nil
			},
			Done: func(a *engine.Action) bool {
				return a.Output().Int("progress") >= 100
			},
			Interval: time.Millisecond,
		},
		RunProgress: func(a *engine.Action) float64 {
			return float64(a.Output().Int("progress")) / 100
		},
	}
}

func (f *fixtures) dummyHeavyProgress() *engine.Definition {
	return &engine.Definition{
		Name: "DummyHeavyProgress",
		Plan: func(p *engine.PlanContext, args ...ir.IRValue) error {
			input := arg(args, 0)
			_, err := p.Sequence(func(s *engine.Scope) error {
				if _, err := s.PlanSelf(input); err != nil {
					return err
				}
				_, err := s.PlanAction("DummySuspended", input)
				return err
			})
			return err
		},
		Run:            noop,
		Finalize:       noop,
		RunWeight:      4,
		FinalizeWeight: 5,
	}
}
