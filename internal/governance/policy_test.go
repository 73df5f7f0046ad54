package governance

import (
	"testing"

	"github.com/meera/souschef/internal/command"
	"github.com/meera/souschef/internal/kitchen"
	"github.com/meera/souschef/internal/plan"
)

func snapshot() kitchen.Snapshot {
	return kitchen.Snapshot{State: kitchen.DefaultState()}
}

func steps(commands ...string) []plan.Step {
	out := make([]plan.Step, len(commands))
	for i, c := range commands {
		out[i] = plan.Step{Description: c, Command: c}
	}
	return out
}

func TestPreconditionGuard_AllowsOrderedSmoothiePlan(t *testing.T) {
	guard := NewPreconditionGuard()
	p := plan.New("smoothie", steps(
		command.OpenCabinet,
		command.RemoveLid,
		command.PlacePineapple,
		command.AddSalt,
		command.ReplaceLid,
		command.CloseCabinet,
	), plan.ProvenanceOriginal)

	res := guard.Evaluate(p, snapshot())
	if res.Effect != EffectAllow {
		t.Errorf("expected EffectAllow, got %s (%s)", res.Effect, res.Reason)
	}
}

func TestPreconditionGuard_DeniesSaltBeforeLidRemoval(t *testing.T) {
	guard := NewPreconditionGuard()
	p := plan.New("salt", steps(command.AddSalt), plan.ProvenanceOriginal)

	res := guard.Evaluate(p, snapshot())
	if res.Effect != EffectDeny {
		t.Fatalf("expected EffectDeny, got %s", res.Effect)
	}
	if res.Reason == "" {
		t.Error("deny must carry a reason")
	}
}

func TestPreconditionGuard_DeniesPineappleWithClosedCabinet(t *testing.T) {
	guard := NewPreconditionGuard()
	p := plan.New("pineapple", steps(command.RemoveLid, command.PlacePineapple), plan.ProvenanceOriginal)

	res := guard.Evaluate(p, snapshot())
	if res.Effect != EffectDeny {
		t.Fatalf("expected EffectDeny, got %s", res.Effect)
	}
}

func TestPreconditionGuard_SkipsInformationalSteps(t *testing.T) {
	guard := NewPreconditionGuard()
	p := plan.New("note", []plan.Step{{Description: "tell the user hello"}}, plan.ProvenanceOriginal)

	res := guard.Evaluate(p, snapshot())
	if res.Effect != EffectAllow {
		t.Errorf("expected EffectAllow, got %s", res.Effect)
	}
}
