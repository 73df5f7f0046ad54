package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/meera/souschef/internal/command"
	"github.com/meera/souschef/internal/kitchen"
	"github.com/meera/souschef/internal/plan"
)

// Validator reviews a candidate plan in a fresh conversation so the verdict
// is not colored by the planner's own reasoning trace. A rejection may only
// reorder, insert or remove canonical steps; the revision is checked against
// the registry before it is accepted.
type Validator struct {
	client    *Client
	registry  *command.Registry
	prompts   *PromptManager
	validKeys func(kitchen.State) error
}

type ValidatorOption func(*Validator)

func WithRevisionStateKeys(check func(kitchen.State) error) ValidatorOption {
	return func(v *Validator) { v.validKeys = check }
}

func NewValidator(client *Client, registry *command.Registry, prompts *PromptManager, opts ...ValidatorOption) *Validator {
	v := &Validator{client: client, registry: registry, prompts: prompts}
	for _, o := range opts {
		o(v)
	}
	return v
}

type reviewReply struct {
	Approved    bool       `json:"approved"`
	Reasons     []string   `json:"reasons"`
	RevisedPlan []PlanTask `json:"revised_plan"`
}

// Review asks the oracle to judge p against the current state.
func (v *Validator) Review(ctx context.Context, p *plan.Plan, snap kitchen.Snapshot) (plan.ReviewResult, error) {
	type reviewStep struct {
		ID      int    `json:"id"`
		Title   string `json:"title"`
		Command string `json:"command,omitempty"`
		Done    bool   `json:"done"`
	}
	steps := make([]reviewStep, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = reviewStep{ID: s.Index, Title: s.Description, Command: s.Command, Done: s.Done}
	}
	target, _ := json.Marshal(map[string]any{
		"goal":          p.Goal,
		"kitchen_state": snap.State,
		"plan":          steps,
	})

	log.Printf("[Review] plan %s: %d steps against state v%d", p.ID, len(p.Steps), snap.Version)

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(v.prompts.ValidatorPrompt())},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(string(target))},
		},
	}

	choice, err := v.client.Generate(ctx, "validator", messages, nil)
	if err != nil {
		return plan.ReviewResult{}, err
	}

	reply, err := parseReviewReply(choice.Content)
	if err != nil {
		return plan.ReviewResult{}, fmt.Errorf("invalid validator reply: %w", err)
	}

	result := plan.ReviewResult{Approved: reply.Approved, Reasons: reply.Reasons}
	if reply.Approved {
		log.Printf("[Review] approved (%d reasons)", len(reply.Reasons))
		return result, nil
	}

	if len(reply.RevisedPlan) > 0 {
		revisedSteps, err := v.revisionSteps(p, reply.RevisedPlan)
		if err != nil {
			return plan.ReviewResult{}, err
		}
		result.Revised = plan.New(p.Goal, revisedSteps, plan.ProvenanceRevised)
		log.Printf("[Review] needs revision: %d revised steps", len(revisedSteps))
	} else {
		log.Printf("[Review] rejected without revision")
	}
	return result, nil
}

// revisionSteps validates the revised task list. Effects omitted by the
// reviewer are recovered from the original plan's step with the same
// command, so a pure reorder keeps its state updates.
func (v *Validator) revisionSteps(original *plan.Plan, tasks []PlanTask) ([]plan.Step, error) {
	effectsByCommand := make(map[string]kitchen.State)
	for _, s := range original.Steps {
		if s.Command != "" && len(s.Effects) > 0 {
			effectsByCommand[s.Command] = s.Effects
		}
	}

	steps := make([]plan.Step, 0, len(tasks))
	for _, t := range tasks {
		if t.Title == "" {
			return nil, fmt.Errorf("%w: revision step without a description", ErrNonCanonicalPlanStep)
		}
		cmd := t.Command
		if cmd == "" && v.registry.IsValid(t.Title) {
			cmd = t.Title
		}
		if cmd != "" && !v.registry.IsValid(cmd) {
			return nil, fmt.Errorf("%w: revision introduced %q", ErrNonCanonicalPlanStep, cmd)
		}
		effects := t.StateUpdates
		if len(effects) == 0 && cmd != "" {
			effects = effectsByCommand[cmd]
		}
		if v.validKeys != nil && len(effects) > 0 {
			if err := v.validKeys(effects); err != nil {
				return nil, err
			}
		}
		steps = append(steps, plan.Step{Description: t.Title, Command: cmd, Effects: effects})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: empty revision", ErrNonCanonicalPlanStep)
	}
	return steps, nil
}

// parseReviewReply decodes the JSON verdict. Models sometimes wrap the JSON
// in prose, so a substring between the first '{' and last '}' is the
// fallback before giving up.
func parseReviewReply(content string) (reviewReply, error) {
	var reply reviewReply
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), &reply); err == nil {
		return reply, nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return reply, fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return reply, err
	}
	return reply, nil
}
