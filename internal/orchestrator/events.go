package orchestrator

import "time"

// Phase is the orchestration state machine's current state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePlanning   Phase = "planning"
	PhaseValidating Phase = "validating"
	PhaseExecuting  Phase = "executing"
	PhaseCompleted  Phase = "completed"
	PhaseAborted    Phase = "aborted"
)

// EventType identifies the payload of a progress event.
type EventType string

const (
	EventPhaseChanged  EventType = "phase_changed"
	EventPlanCreated   EventType = "plan_created"
	EventPlanRevised   EventType = "plan_revised"
	EventPlanApproved  EventType = "plan_approved"
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventStateChanged  EventType = "state_changed"
	EventFailure       EventType = "failure"
	EventTaskCompleted EventType = "task_completed"
	EventTaskAborted   EventType = "task_aborted"
)

// Event is one entry on the observation channel. Observers read snapshots;
// they never mutate shared state through an event.
type Event struct {
	Type      EventType
	Phase     Phase
	PlanID    string
	Data      any
	Timestamp time.Time
}

// Failure carries enough structure for an observer to render a precise
// message: the error kind plus the offending value.
type Failure struct {
	Kind      string `json:"kind"`
	Offending string `json:"offending"`
	Detail    string `json:"detail,omitempty"`
}

// StepInfo describes a step transition for observers.
type StepInfo struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Command     string `json:"command,omitempty"`
	Done        int    `json:"done"`
	Total       int    `json:"total"`
}
