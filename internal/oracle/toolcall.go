package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/meera/souschef/internal/kitchen"
)

// Call is the closed set of structured calls the oracle may name. Responses
// are decoded once at the protocol boundary into one of these variants and
// then dispatched with an exhaustive switch, no open-ended reflection.
type Call interface {
	callName() string
}

type ExecuteRobotCommand struct {
	LanguageInstruction string `json:"language_instruction"`
	ActionsToExecute    int    `json:"actions_to_execute"`
	UseAngleStop        bool   `json:"use_angle_stop"`
}

type GetRobotStatus struct{}

type UpdateKitchenState struct {
	StateUpdates kitchen.State `json:"state_updates"`
}

type MarkTaskComplete struct {
	TaskID int `json:"task_id"`
}

type GetCurrentPlan struct{}

type CreatePlan struct {
	Tasks []PlanTask `json:"tasks"`
}

type ReviewPlan struct {
	Instructions string `json:"instructions"`
}

func (ExecuteRobotCommand) callName() string { return "execute_robot_command" }
func (GetRobotStatus) callName() string      { return "get_robot_status" }
func (UpdateKitchenState) callName() string  { return "update_kitchen_state" }
func (MarkTaskComplete) callName() string    { return "mark_task_complete" }
func (GetCurrentPlan) callName() string      { return "get_current_plan" }
func (CreatePlan) callName() string          { return "create_plan" }
func (ReviewPlan) callName() string          { return "review_plan" }

// PlanTask is one entry of a create_plan or revised_plan payload. Models are
// inconsistent about the field carrying the step text, so several aliases
// are accepted; a bare string is treated as the title.
type PlanTask struct {
	Title        string
	Command      string
	StateUpdates kitchen.State
}

func (t *PlanTask) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Title = s
		return nil
	}

	var aux struct {
		Title        string        `json:"title"`
		Description  string        `json:"description"`
		Name         string        `json:"name"`
		Step         string        `json:"step"`
		Instruction  string        `json:"instruction"`
		Task         string        `json:"task"`
		Action       string        `json:"action"`
		Command      string        `json:"command"`
		StateUpdates kitchen.State `json:"state_updates"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	for _, cand := range []string{aux.Title, aux.Description, aux.Name, aux.Step, aux.Instruction, aux.Task, aux.Action, aux.Command} {
		if cand != "" {
			t.Title = cand
			break
		}
	}
	t.Command = aux.Command
	t.StateUpdates = aux.StateUpdates
	return nil
}

// DecodeCall turns a raw tool call (name + JSON arguments) into a Call.
// Unknown names are a contract violation, not something to improvise around.
func DecodeCall(name, arguments string) (Call, error) {
	if arguments == "" {
		arguments = "{}"
	}
	switch name {
	case "execute_robot_command":
		var c ExecuteRobotCommand
		if err := json.Unmarshal([]byte(arguments), &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return c, nil
	case "get_robot_status":
		return GetRobotStatus{}, nil
	case "update_kitchen_state":
		var c UpdateKitchenState
		if err := json.Unmarshal([]byte(arguments), &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return c, nil
	case "mark_task_complete":
		var c MarkTaskComplete
		if err := json.Unmarshal([]byte(arguments), &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return c, nil
	case "get_current_plan":
		return GetCurrentPlan{}, nil
	case "create_plan":
		var c CreatePlan
		if err := json.Unmarshal([]byte(arguments), &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return c, nil
	case "review_plan":
		var c ReviewPlan
		if err := json.Unmarshal([]byte(arguments), &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown tool call %q", name)
	}
}

// ToolSurface declares the full function surface shown to the oracle on
// every planning or validation request. Argument names are fixed; the oracle
// is not free to invent its own shapes.
func ToolSurface() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "execute_robot_command",
				Description: "Execute a command on the kitchen robot",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"language_instruction": map[string]any{
							"type":        "string",
							"description": "Exactly one of the canonical command strings",
						},
						"actions_to_execute": map[string]any{
							"type":        "integer",
							"description": "Number of robot actions to run (default: 150)",
							"default":     150,
						},
						"use_angle_stop": map[string]any{
							"type":        "boolean",
							"description": "Whether to use angle stop (default: true)",
							"default":     true,
						},
					},
					"required": []string{"language_instruction"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "get_robot_status",
				Description: "Check the robot controller status",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "update_kitchen_state",
				Description: "Update remembered kitchen state (assistant-managed)",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"state_updates": map[string]any{
							"type":        "object",
							"description": "Partial state to merge",
						},
					},
					"required": []string{"state_updates"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "mark_task_complete",
				Description: "Mark a task id as complete in the current plan",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"task_id": map[string]any{"type": "integer"},
					},
					"required": []string{"task_id"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "get_current_plan",
				Description: "Get the current task list and kitchen state",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "create_plan",
				Description: "Create a new task plan for the user",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tasks": map[string]any{
							"type":        "array",
							"description": "Ordered list of plan steps",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"title": map[string]any{
										"type":        "string",
										"description": "Human-readable step description",
									},
									"command": map[string]any{
										"type":        "string",
										"description": "Exact canonical command string, omitted for informational steps",
									},
									"state_updates": map[string]any{
										"type":        "object",
										"description": "Kitchen facts that become true/false once the step succeeds",
									},
								},
								"additionalProperties": true,
							},
						},
					},
					"required": []string{"tasks"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "review_plan",
				Description: "Validate the current plan against the kitchen state and optionally return a minimally revised plan",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"instructions": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}
