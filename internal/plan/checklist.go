package plan

import "fmt"

// ErrUnknownStep signals a completion mark for an index the current plan
// does not have. This legitimately happens when a revision removed a step,
// so callers treat it as a no-op with a signal, not a crash.
var ErrUnknownStep = fmt.Errorf("unknown plan step")

// Item is one checklist row, a read-only projection of a plan step.
type Item struct {
	Index       int
	Description string
	Done        bool
}

// Checklist is the live projection of the active plan's steps. It is rebuilt
// whenever the plan is replaced. Only the orchestration loop touches it, so
// it carries no locking of its own.
type Checklist struct {
	plan *Plan
}

// NewChecklist returns an empty checklist.
func NewChecklist() *Checklist {
	return &Checklist{}
}

// Load replaces the entire checklist with p's steps and resets every
// completion flag.
func (c *Checklist) Load(p *Plan) {
	c.plan = p
	if p == nil {
		return
	}
	for i := range p.Steps {
		p.Steps[i].Done = false
	}
}

// MarkComplete sets the completion flag of the step with the given index.
func (c *Checklist) MarkComplete(index int) error {
	if c.plan == nil {
		return fmt.Errorf("%w: %d (no active plan)", ErrUnknownStep, index)
	}
	for i := range c.plan.Steps {
		if c.plan.Steps[i].Index == index {
			c.plan.Steps[i].Done = true
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownStep, index)
}

// NextPending returns the lowest-index incomplete step, if any. It drives
// execution order and the "next step" shown to observers.
func (c *Checklist) NextPending() (Step, bool) {
	if c.plan == nil {
		return Step{}, false
	}
	for _, s := range c.plan.Steps {
		if !s.Done {
			return s, true
		}
	}
	return Step{}, false
}

// Progress returns completed and total step counts.
func (c *Checklist) Progress() (done, total int) {
	if c.plan == nil {
		return 0, 0
	}
	for _, s := range c.plan.Steps {
		if s.Done {
			done++
		}
	}
	return done, len(c.plan.Steps)
}

// Items returns a snapshot of the checklist rows for observers.
func (c *Checklist) Items() []Item {
	if c.plan == nil {
		return nil
	}
	out := make([]Item, len(c.plan.Steps))
	for i, s := range c.plan.Steps {
		out[i] = Item{Index: s.Index, Description: s.Description, Done: s.Done}
	}
	return out
}
