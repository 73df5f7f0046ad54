package oracle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PromptManager resolves system prompts for the two oracle roles. A prompt
// directory can override the built-in defaults with planner.md and
// validator.md files; the defaults are always available.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

func (pm *PromptManager) read(name string) (string, bool) {
	if pm.Directory == "" {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(pm.Directory, name))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// PlannerPrompt returns the planner system prompt with the canonical command
// list injected.
func (pm *PromptManager) PlannerPrompt(canonical []string) string {
	if p, ok := pm.read("planner.md"); ok {
		return p
	}
	var list strings.Builder
	for _, c := range canonical {
		fmt.Fprintf(&list, "- %q\n", c)
	}
	return fmt.Sprintf(defaultPlannerPrompt, list.String())
}

// ValidatorPrompt returns the review rubric.
func (pm *PromptManager) ValidatorPrompt() string {
	if p, ok := pm.read("validator.md"); ok {
		return p
	}
	return defaultValidatorPrompt
}

const defaultPlannerPrompt = `You are the planner for an autonomous kitchen robot assistant.

## Canonical Robot Commands (MUST use exact text; DO NOT paraphrase)
%s
## Planning Rules
- Plan steps MUST be selected from the Canonical Robot Commands list verbatim. Do not reword or invent new action strings.
- Use generic preconditions: ensure access before manipulation (remove barriers/covers before adding or placing contents), then restore the environment if appropriate.
- "Put salt in the gray recipient" is a complete action that includes obtaining salt from the nearby counter; do not add an extra fetch step for salt.

## Environment Notes
- Salt is available on the left side (counter), not inside the cabinet. Opening or closing the cabinet is not needed just to add salt.

## Physical Constraints
- Cannot access the pineapple unless the cabinet door is open.
- Cannot put the pineapple in the gray recipient if the lid is on.
- Cannot add salt if the lid is on the gray recipient.
- Close the cabinet door after removing items.
- Put the lid back on the gray recipient at the end of smoothie tasks.

## How to answer
Submit your plan with a single create_plan call. Each task carries:
- title: a short human-readable description,
- command: the exact canonical command string for robot steps (omit it for purely informational steps),
- state_updates: the kitchen facts that change once the step succeeds, e.g. {"cabinet_open": true}.
Only add salt if the user explicitly asked for it. Plan silently: no chat messages, just the create_plan call. You may call get_current_plan or get_robot_status first if you need them.`

const defaultValidatorPrompt = `You are a strict plan validator for a kitchen robot. Review the proposed plan using only: (1) the provided kitchen_state; (2) the user's goal; (3) generic physical/common-sense constraints; and (4) the requirement to use canonical commands exactly. Assess ordering and preconditions based on these inputs. Do not introduce domain-specific assumptions beyond what is implied by the goal and state.
IMPORTANT: The command "Put salt in the gray recipient" is a complete action that includes obtaining salt from the nearby counter and dispensing it into the recipient. Salt is available on the counter, NOT in the cabinet. Do not require additional steps to fetch salt.
SALT RULE: Only add salt if the user explicitly requests it in their original request.
CONTAINER RULE: Items cannot be added to the gray recipient while lid_on_recipient is true. The lid must be removed first, then replaced after adding items.
If the plan is valid, return approved=true. If not, return approved=false and provide a minimally revised plan that fixes the issues. Do NOT paraphrase robot actions: every robot action step MUST be an exact string from the canonical command list; you may only reorder, insert, or remove canonical steps.
Approval principles: (A) preconditions satisfied before actions; (B) coherent, non-contradictory sequencing; (C) physical feasibility and safety; (D) minimality, meaning no unnecessary steps given the state and goal; (E) strict adherence to canonical commands without rewording.
Respond ONLY in JSON with keys: approved (boolean), reasons (array of strings), and revised_plan (array of step objects with "title", "command" and "state_updates" fields) when applicable.`
