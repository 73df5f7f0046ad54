package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meera/souschef/internal/actuator"
	"github.com/meera/souschef/internal/governance"
	"github.com/meera/souschef/internal/kitchen"
	"github.com/meera/souschef/internal/oracle"
	"github.com/meera/souschef/internal/plan"
)

// Planner produces a candidate plan for a goal against a state snapshot.
type Planner interface {
	Propose(ctx context.Context, goal string, snap kitchen.Snapshot) (*plan.Plan, error)
}

// Validator reviews a candidate plan independently of the planner.
type Validator interface {
	Review(ctx context.Context, p *plan.Plan, snap kitchen.Snapshot) (plan.ReviewResult, error)
}

// Dispatcher sends one canonical command to the actuator.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd string, actions int, stop actuator.StopMode) (actuator.Outcome, error)
}

// Journal persists plans and outcomes. Optional.
type Journal interface {
	RecordPlan(p *plan.Plan) error
	RecordOutcome(planID string, stepIndex int, out actuator.Outcome) error
}

const (
	goalQueueSize   = 8
	eventBufferSize = 64
)

// Loop is the orchestration state machine: Idle → Planning → Validating →
// Executing → Completed, with Aborted reachable from any non-terminal state.
// The Run goroutine is the sole writer of the plan, kitchen state and
// checklist; oracle and actuator calls run on worker goroutines with a
// result channel and the loop blocks on exactly one outstanding call at a
// time. Observers consume the Events channel.
type Loop struct {
	planner    Planner
	validator  Validator
	dispatcher Dispatcher
	state      *kitchen.Store
	checklist  *plan.Checklist
	guard      governance.PlanGuard
	journal    Journal

	actions int
	stop    actuator.StopMode

	goals     chan string
	cancelCh  chan struct{}
	cancelled atomic.Bool
	events    chan Event

	mu     sync.RWMutex
	phase  Phase
	active *plan.Plan
}

type Option func(*Loop)

// WithGuard enables the strict-mode precondition guard.
func WithGuard(g governance.PlanGuard) Option {
	return func(l *Loop) { l.guard = g }
}

func WithJournal(j Journal) Option {
	return func(l *Loop) { l.journal = j }
}

// WithActions sets actions_to_execute sent on every dispatch.
func WithActions(n int) Option {
	return func(l *Loop) { l.actions = n }
}

func WithStopMode(m actuator.StopMode) Option {
	return func(l *Loop) { l.stop = m }
}

func New(planner Planner, validator Validator, dispatcher Dispatcher, state *kitchen.Store, opts ...Option) *Loop {
	l := &Loop{
		planner:    planner,
		validator:  validator,
		dispatcher: dispatcher,
		state:      state,
		checklist:  plan.NewChecklist(),
		actions:    150,
		stop:       actuator.StopAngle,
		goals:      make(chan string, goalQueueSize),
		cancelCh:   make(chan struct{}, 1),
		events:     make(chan Event, eventBufferSize),
		phase:      PhaseIdle,
	}
	for _, o := range opts {
		o(l)
	}
	state.OnChange(func(snap kitchen.Snapshot) {
		l.publish(Event{Type: EventStateChanged, Data: snap})
	})
	return l
}

// Events returns the observation channel. A single consumer is expected;
// publishing never blocks the loop (full buffer drops with a warning).
func (l *Loop) Events() <-chan Event {
	return l.events
}

// Phase returns the current state machine phase.
func (l *Loop) Phase() Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase
}

// Checklist returns a snapshot of the active checklist rows.
func (l *Loop) Checklist() []plan.Item {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checklist.Items()
}

// Submit queues a new user goal. A goal arriving while a previous task is
// running waits its turn; the previous plan is discarded when the new task
// starts, state is retained.
func (l *Loop) Submit(goal string) error {
	select {
	case l.goals <- goal:
		return nil
	default:
		return fmt.Errorf("goal queue full")
	}
}

// Cancel requests a cooperative abort. The flag is checked between steps;
// an in-flight dispatch completes and its outcome is still applied before
// the loop finalizes Aborted, so state never reflects a command whose
// outcome is unknown.
func (l *Loop) Cancel() {
	l.cancelled.Store(true)
	select {
	case l.cancelCh <- struct{}{}:
	default:
	}
}

// Run serves goals until ctx is done. All state transitions happen on this
// goroutine.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case goal := <-l.goals:
			l.runTask(ctx, goal)
		}
	}
}

func (l *Loop) runTask(ctx context.Context, goal string) {
	l.cancelled.Store(false)
	select {
	case <-l.cancelCh: // drop a stale cancel from a previous task
	default:
	}

	log.Printf("[Loop] goal received: %s", goal)
	l.setPhase(PhasePlanning, "")

	p, err := l.callPlanner(ctx, goal)
	if err != nil {
		l.abort("", failureFor(err))
		return
	}
	l.publish(Event{Type: EventPlanCreated, PlanID: p.ID, Data: planSummary(p)})

	l.setPhase(PhaseValidating, p.ID)
	approved, err := l.validate(ctx, p)
	if err != nil {
		l.abort(p.ID, failureFor(err))
		return
	}
	p = approved
	p.Approved = true
	l.publish(Event{Type: EventPlanApproved, PlanID: p.ID, Data: planSummary(p)})

	if l.guard != nil {
		if res := l.guard.Evaluate(p, l.state.Snapshot()); res.Effect == governance.EffectDeny {
			l.abort(p.ID, Failure{Kind: "precondition_denied", Offending: res.Reason})
			return
		}
	}

	l.mu.Lock()
	l.active = p
	l.checklist.Load(p)
	l.mu.Unlock()

	if l.journal != nil {
		if err := l.journal.RecordPlan(p); err != nil {
			log.Printf("[Loop] journal: %v", err)
		}
	}

	l.setPhase(PhaseExecuting, p.ID)
	l.execute(ctx, p)
}

// validate runs the review round, applying at most one automatic revision.
// A second rejection stalls rather than looping against the oracle.
func (l *Loop) validate(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	res, err := l.callValidator(ctx, p)
	if err != nil {
		return nil, err
	}
	if res.Approved {
		return p, nil
	}
	if res.Revised == nil {
		return nil, fmt.Errorf("%w: rejection without revision: %v", oracle.ErrValidationStalled, res.Reasons)
	}

	l.publish(Event{Type: EventPlanRevised, PlanID: res.Revised.ID, Data: map[string]any{
		"replaces": p.ID,
		"reasons":  res.Reasons,
		"steps":    planSummary(res.Revised),
	}})

	second, err := l.callValidator(ctx, res.Revised)
	if err != nil {
		return nil, err
	}
	if second.Approved {
		return res.Revised, nil
	}
	return nil, fmt.Errorf("%w: revision rejected: %v", oracle.ErrValidationStalled, second.Reasons)
}

func (l *Loop) execute(ctx context.Context, p *plan.Plan) {
	for {
		if l.cancelled.Load() {
			l.abort(p.ID, Failure{Kind: "cancelled"})
			return
		}

		step, ok := l.nextPending()
		if !ok {
			break
		}
		l.publish(Event{Type: EventStepStarted, PlanID: p.ID, Data: l.stepInfo(step)})

		// Informational steps need no actuator round-trip.
		if step.Command == "" {
			l.markComplete(p, step)
			continue
		}

		out, err := l.callDispatcher(ctx, step)
		if l.journal != nil {
			if jerr := l.journal.RecordOutcome(p.ID, step.Index, out); jerr != nil {
				log.Printf("[Loop] journal: %v", jerr)
			}
		}
		if err != nil {
			l.abort(p.ID, failureForStep(err, step))
			return
		}
		if !out.Success {
			l.abort(p.ID, Failure{Kind: "step_failed", Offending: step.Command, Detail: out.Status})
			return
		}

		// The outcome is known: apply the step's state effects, then mark it
		// complete. Effects are never applied speculatively.
		if len(step.Effects) > 0 {
			if _, uerr := l.state.Update(step.Effects); uerr != nil {
				l.abort(p.ID, failureForStep(uerr, step))
				return
			}
		}
		l.markComplete(p, step)
	}

	l.setPhase(PhaseCompleted, p.ID)
	done, total := l.progress()
	l.publish(Event{Type: EventTaskCompleted, PlanID: p.ID, Data: map[string]any{
		"goal":  p.Goal,
		"done":  done,
		"total": total,
	}})
}

func (l *Loop) markComplete(p *plan.Plan, step plan.Step) {
	l.mu.Lock()
	err := l.checklist.MarkComplete(step.Index)
	l.mu.Unlock()
	if err != nil {
		// A revision removed the step: surfaced, not swallowed, and not fatal.
		l.publish(Event{Type: EventFailure, PlanID: p.ID, Data: Failure{
			Kind:      "unknown_step",
			Offending: fmt.Sprintf("%d", step.Index),
		}})
		return
	}
	l.publish(Event{Type: EventStepCompleted, PlanID: p.ID, Data: l.stepInfo(step)})
}

func (l *Loop) nextPending() (plan.Step, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checklist.NextPending()
}

func (l *Loop) progress() (int, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checklist.Progress()
}

func (l *Loop) stepInfo(step plan.Step) StepInfo {
	done, total := l.progress()
	return StepInfo{
		Index:       step.Index,
		Description: step.Description,
		Command:     step.Command,
		Done:        done,
		Total:       total,
	}
}

// callPlanner runs the planner on a worker goroutine. Cancellation
// propagates into the oracle call; the loop still waits for the worker to
// return before moving on.
func (l *Loop) callPlanner(ctx context.Context, goal string) (*plan.Plan, error) {
	type result struct {
		p   *plan.Plan
		err error
	}
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		p, err := l.planner.Propose(cctx, goal, l.state.Snapshot())
		ch <- result{p, err}
	}()
	for {
		select {
		case r := <-ch:
			if l.cancelled.Load() && r.err == nil {
				return nil, context.Canceled
			}
			return r.p, r.err
		case <-l.cancelCh:
			l.cancelled.Store(true)
			cancel()
		}
	}
}

func (l *Loop) callValidator(ctx context.Context, p *plan.Plan) (plan.ReviewResult, error) {
	type result struct {
		res plan.ReviewResult
		err error
	}
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		res, err := l.validator.Review(cctx, p, l.state.Snapshot())
		ch <- result{res, err}
	}()
	for {
		select {
		case r := <-ch:
			if l.cancelled.Load() && r.err == nil {
				return plan.ReviewResult{}, context.Canceled
			}
			return r.res, r.err
		case <-l.cancelCh:
			l.cancelled.Store(true)
			cancel()
		}
	}
}

// callDispatcher never cancels an in-flight dispatch: the actuator may be
// mid-action, so the loop waits for the outcome and applies it regardless.
func (l *Loop) callDispatcher(ctx context.Context, step plan.Step) (actuator.Outcome, error) {
	type result struct {
		out actuator.Outcome
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := l.dispatcher.Dispatch(ctx, step.Command, l.actions, l.stop)
		ch <- result{out, err}
	}()
	for {
		select {
		case r := <-ch:
			return r.out, r.err
		case <-l.cancelCh:
			l.cancelled.Store(true)
			// keep waiting for the outcome
		}
	}
}

func (l *Loop) setPhase(phase Phase, planID string) {
	l.mu.Lock()
	l.phase = phase
	l.mu.Unlock()
	l.publish(Event{Type: EventPhaseChanged, Phase: phase, PlanID: planID})
}

func (l *Loop) abort(planID string, f Failure) {
	log.Printf("[Loop] abort: %s (%s)", f.Kind, f.Offending)
	l.publish(Event{Type: EventFailure, PlanID: planID, Data: f})
	l.mu.Lock()
	l.phase = PhaseAborted
	l.mu.Unlock()
	l.publish(Event{Type: EventTaskAborted, Phase: PhaseAborted, PlanID: planID, Data: f})
}

func (l *Loop) publish(evt Event) {
	evt.Timestamp = time.Now()
	if evt.Phase == "" {
		evt.Phase = l.Phase()
	}
	select {
	case l.events <- evt:
	default:
		log.Printf("[Loop] WARNING: event buffer full, dropped %s", evt.Type)
	}
}

func planSummary(p *plan.Plan) []map[string]any {
	out := make([]map[string]any, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = map[string]any{
			"index":       s.Index,
			"description": s.Description,
			"command":     s.Command,
		}
	}
	return out
}

func failureFor(err error) Failure {
	switch {
	case errors.Is(err, oracle.ErrNonCanonicalPlanStep):
		return Failure{Kind: "non_canonical_plan_step", Offending: err.Error()}
	case errors.Is(err, oracle.ErrPlanningFailed):
		return Failure{Kind: "planning_failed", Offending: err.Error()}
	case errors.Is(err, oracle.ErrValidationStalled):
		return Failure{Kind: "validation_stalled", Offending: err.Error()}
	case errors.Is(err, context.Canceled):
		return Failure{Kind: "cancelled"}
	default:
		return Failure{Kind: "oracle_error", Offending: err.Error()}
	}
}

func failureForStep(err error, step plan.Step) Failure {
	switch {
	case errors.Is(err, actuator.ErrNonCanonicalCommand):
		return Failure{Kind: "non_canonical_command", Offending: step.Command}
	case errors.Is(err, actuator.ErrUnreachable):
		return Failure{Kind: "actuator_unreachable", Offending: step.Command, Detail: err.Error()}
	case errors.Is(err, kitchen.ErrInvalidStateKey):
		return Failure{Kind: "invalid_state_key", Offending: err.Error()}
	default:
		return Failure{Kind: "step_failed", Offending: step.Command, Detail: err.Error()}
	}
}
