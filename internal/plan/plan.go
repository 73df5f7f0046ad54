package plan

import (
	"github.com/google/uuid"

	"github.com/meera/souschef/internal/kitchen"
)

// Provenance records whether a plan came straight from the planner or from a
// validator revision.
type Provenance string

const (
	ProvenanceOriginal Provenance = "original"
	ProvenanceRevised  Provenance = "revised"
)

// Step is a single entry in a plan. Command is empty for purely
// informational steps that require no actuator dispatch. Effects are the
// state facts the orchestrator applies once the step's outcome is known.
type Step struct {
	Index       int
	Description string
	Command     string
	Effects     kitchen.State
	Done        bool
}

// Plan is an ordered sequence of steps. Step content is immutable once the
// plan is created; only the Done flags and the Approved flag may change.
// Replacing steps means building a new plan via a validator revision.
type Plan struct {
	ID         string
	Goal       string
	Provenance Provenance
	Approved   bool
	Steps      []Step
}

// New builds a plan from steps, assigning 1-based ascending indexes and
// resetting completion flags.
func New(goal string, steps []Step, prov Provenance) *Plan {
	p := &Plan{
		ID:         uuid.NewString(),
		Goal:       goal,
		Provenance: prov,
		Steps:      make([]Step, len(steps)),
	}
	for i, s := range steps {
		s.Index = i + 1
		s.Done = false
		p.Steps[i] = s
	}
	return p
}

// Commands returns the non-empty command strings in step order.
func (p *Plan) Commands() []string {
	var out []string
	for _, s := range p.Steps {
		if s.Command != "" {
			out = append(out, s.Command)
		}
	}
	return out
}

// ReviewResult is the validator's verdict on a plan. Revised is present only
// when Approved is false and the validator produced a minimal rework
// (reorder, insert or remove, never a rewrite into non-canonical text).
type ReviewResult struct {
	Approved bool
	Reasons  []string
	Revised  *Plan
}
