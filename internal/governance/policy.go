package governance

import (
	"fmt"

	"github.com/meera/souschef/internal/command"
	"github.com/meera/souschef/internal/kitchen"
	"github.com/meera/souschef/internal/plan"
)

// Effect defines the result of a guard evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Result contains the outcome of a guard evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PlanGuard judges an approved plan before execution starts. The default
// deployment runs without one: plan safety is delegated entirely to the
// validator oracle. The strict-mode guard below is an opt-in hardening
// layer, not part of the baseline behavior.
type PlanGuard interface {
	Evaluate(p *plan.Plan, snap kitchen.Snapshot) Result
}

// PreconditionGuard walks the plan's robot steps against a simulated copy
// of the kitchen state and denies physically impossible orderings.
type PreconditionGuard struct{}

func NewPreconditionGuard() *PreconditionGuard {
	return &PreconditionGuard{}
}

func (g *PreconditionGuard) Evaluate(p *plan.Plan, snap kitchen.Snapshot) Result {
	facts := snap.State.Clone()

	for _, s := range p.Steps {
		if s.Command == "" {
			continue
		}
		switch s.Command {
		case command.OpenCabinet:
			facts["cabinet_open"] = true
		case command.CloseCabinet:
			facts["cabinet_open"] = false
		case command.RemoveLid:
			facts["lid_on_recipient"] = false
		case command.ReplaceLid:
			facts["lid_on_recipient"] = true
		case command.PlacePineapple:
			if !facts["cabinet_open"] {
				return deny(s, "cabinet door is closed; the pineapple is unreachable")
			}
			if facts["lid_on_recipient"] {
				return deny(s, "lid is on the gray recipient; nothing can be placed inside")
			}
			facts["pineapple_in_recipient"] = true
		case command.AddSalt:
			if facts["lid_on_recipient"] {
				return deny(s, "lid is on the gray recipient; salt cannot be added")
			}
			facts["salt_added"] = true
		}
	}

	return Result{Effect: EffectAllow, Reason: "all step preconditions hold"}
}

func deny(s plan.Step, why string) Result {
	return Result{
		Effect: EffectDeny,
		Reason: fmt.Sprintf("step %d (%q): %s", s.Index, s.Command, why),
	}
}
