package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms"

	"github.com/meera/souschef/internal/command"
	"github.com/meera/souschef/internal/kitchen"
	"github.com/meera/souschef/internal/plan"
)

var (
	// ErrNonCanonicalPlanStep marks a proposal containing an action string
	// outside the whitelist. The whole proposal is rejected; the step is
	// never retried as-is, only via a fresh planner round.
	ErrNonCanonicalPlanStep = fmt.Errorf("non-canonical plan step")

	// ErrPlanningFailed means the planner exhausted its re-request budget.
	ErrPlanningFailed = fmt.Errorf("planning failed")

	// ErrValidationStalled means a second rejection followed the one
	// automatic revision round.
	ErrValidationStalled = fmt.Errorf("validation stalled")
)

// StatusProbe lets the planner answer get_robot_status without owning the
// actuator.
type StatusProbe func(ctx context.Context) (string, error)

// Planner asks the reasoning oracle for a candidate plan and enforces the
// canonical-command contract on whatever comes back.
type Planner struct {
	client    *Client
	registry  *command.Registry
	prompts   *PromptManager
	status    StatusProbe
	validKeys func(kitchen.State) error

	// maxRetries bounds re-requests after a rejected proposal so a
	// misbehaving oracle cannot loop forever.
	maxRetries int
	// maxTurns bounds the inner tool-call conversation.
	maxTurns int
}

type PlannerOption func(*Planner)

func WithStatusProbe(p StatusProbe) PlannerOption {
	return func(pl *Planner) { pl.status = p }
}

// WithStateKeys installs the fact-vocabulary check applied to each step's
// state_updates before a proposal is accepted.
func WithStateKeys(check func(kitchen.State) error) PlannerOption {
	return func(pl *Planner) { pl.validKeys = check }
}

func WithPlannerRetries(n int) PlannerOption {
	return func(pl *Planner) { pl.maxRetries = n }
}

func NewPlanner(client *Client, registry *command.Registry, prompts *PromptManager, opts ...PlannerOption) *Planner {
	p := &Planner{
		client:     client,
		registry:   registry,
		prompts:    prompts,
		maxRetries: 2,
		maxTurns:   8,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Propose asks the oracle for an ordered plan for goal given the current
// state snapshot. Read-only tool calls (get_current_plan, get_robot_status)
// are answered mid-conversation; create_plan terminates it. A proposal with
// a non-canonical step costs one retry; spending the budget surfaces
// ErrPlanningFailed.
func (p *Planner) Propose(ctx context.Context, goal string, snap kitchen.Snapshot) (*plan.Plan, error) {
	stateJSON, _ := json.Marshal(snap.State)
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(p.prompts.PlannerPrompt(p.registry.Commands()))},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(fmt.Sprintf(
				"Goal: %s\n\nCurrent kitchen state (version %d): %s", goal, snap.Version, stateJSON))},
		},
	}

	retries := 0
	var lastErr error

	for turn := 0; turn < p.maxTurns; turn++ {
		choice, err := p.client.Generate(ctx, "planner", messages, ToolSurface())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPlanningFailed, err)
		}

		if len(choice.ToolCalls) == 0 {
			// Free text is not a plan. Nudge once per retry.
			retries++
			lastErr = fmt.Errorf("oracle answered with text instead of create_plan")
			if retries > p.maxRetries {
				break
			}
			messages = appendText(messages, choice.Content,
				"You must submit the plan as a single create_plan tool call.")
			continue
		}

		tc := choice.ToolCalls[0]
		call, err := DecodeCall(tc.FunctionCall.Name, tc.FunctionCall.Arguments)
		if err != nil {
			retries++
			lastErr = err
			if retries > p.maxRetries {
				break
			}
			messages = appendToolRound(messages, choice, tc, fmt.Sprintf("Error: %v. Submit the plan with create_plan.", err))
			continue
		}

		switch call := call.(type) {
		case CreatePlan:
			steps, err := p.stepsFromTasks(call.Tasks)
			if err != nil {
				log.Printf("[Planner] proposal rejected: %v", err)
				retries++
				lastErr = err
				if retries > p.maxRetries {
					break
				}
				messages = appendToolRound(messages, choice, tc, fmt.Sprintf(
					"Plan rejected: %v. Every robot step's command must be an exact canonical string. Submit a corrected create_plan.", err))
				continue
			}
			return plan.New(goal, steps, plan.ProvenanceOriginal), nil

		case GetCurrentPlan:
			reply, _ := json.Marshal(map[string]any{
				"status":        "success",
				"current_plan":  []any{},
				"kitchen_state": snap.State,
			})
			messages = appendToolRound(messages, choice, tc, string(reply))

		case GetRobotStatus:
			status := "unknown"
			if p.status != nil {
				if s, err := p.status(ctx); err == nil {
					status = s
				} else {
					status = fmt.Sprintf("error: %v", err)
				}
			}
			messages = appendToolRound(messages, choice, tc, status)

		case ExecuteRobotCommand, UpdateKitchenState, MarkTaskComplete, ReviewPlan:
			messages = appendToolRound(messages, choice, tc,
				"Not available during planning. Submit the full plan with create_plan; the orchestrator executes it.")
		}

		if retries > p.maxRetries {
			break
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanningFailed, lastErr)
	}
	return nil, fmt.Errorf("%w: oracle never submitted a plan", ErrPlanningFailed)
}

// stepsFromTasks converts oracle plan tasks into validated plan steps. A
// task whose title is itself a canonical command is a robot step; a task
// with neither a command nor a canonical title is informational.
func (p *Planner) stepsFromTasks(tasks []PlanTask) ([]plan.Step, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("empty task list")
	}
	steps := make([]plan.Step, 0, len(tasks))
	for _, t := range tasks {
		if t.Title == "" {
			return nil, fmt.Errorf("task without a description")
		}
		cmd := t.Command
		if cmd == "" && p.registry.IsValid(t.Title) {
			cmd = t.Title
		}
		if cmd != "" && !p.registry.IsValid(cmd) {
			return nil, fmt.Errorf("%w: %q", ErrNonCanonicalPlanStep, cmd)
		}
		if p.validKeys != nil && len(t.StateUpdates) > 0 {
			if err := p.validKeys(t.StateUpdates); err != nil {
				return nil, err
			}
		}
		steps = append(steps, plan.Step{
			Description: t.Title,
			Command:     cmd,
			Effects:     t.StateUpdates,
		})
	}
	return steps, nil
}

func appendText(messages []llms.MessageContent, assistant, nudge string) []llms.MessageContent {
	if assistant != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: []llms.ContentPart{llms.TextPart(assistant)},
		})
	}
	return append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(nudge)},
	})
}

// appendToolRound records the assistant's tool call and our response the
// way the model expects to observe them.
func appendToolRound(messages []llms.MessageContent, choice *llms.ContentChoice, tc llms.ToolCall, result string) []llms.MessageContent {
	var assistantParts []llms.ContentPart
	if choice.Content != "" {
		assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
	}
	assistantParts = append(assistantParts, tc)
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeAI,
		Parts: assistantParts,
	})
	return append(messages, llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{
				ToolCallID: tc.ID,
				Name:       tc.FunctionCall.Name,
				Content:    result,
			},
		},
	})
}
