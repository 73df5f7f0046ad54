package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/meera/souschef/internal/command"
	"github.com/meera/souschef/internal/kitchen"
	"github.com/meera/souschef/internal/plan"
)

func newTestPlanner(model llms.Model, opts ...PlannerOption) *Planner {
	client := NewClient(model, WithStreaming(false))
	return NewPlanner(client, command.Default(), NewPromptManager(""), opts...)
}

func snapshot() kitchen.Snapshot {
	return kitchen.Snapshot{State: kitchen.DefaultState(), Version: 0}
}

func TestProposeAcceptsCanonicalPlan(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("create_plan", `{"tasks":[
			{"title":"Open the cabinet","command":"Open the left cabinet door","state_updates":{"cabinet_open":true}},
			{"title":"Tell the user we are done"}
		]}`),
	}}
	p := newTestPlanner(model)

	got, err := p.Propose(context.Background(), "open the cabinet", snapshot())
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, command.OpenCabinet, got.Steps[0].Command)
	assert.True(t, got.Steps[0].Effects["cabinet_open"])
	assert.Empty(t, got.Steps[1].Command, "step without command is informational")
	assert.Equal(t, plan.ProvenanceOriginal, got.Provenance)
	assert.False(t, got.Approved)
}

func TestProposeTitleThatIsCanonicalBecomesCommand(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("create_plan", `{"tasks":[{"title":"Put salt in the gray recipient"}]}`),
	}}
	p := newTestPlanner(model)

	got, err := p.Propose(context.Background(), "add salt", snapshot())
	require.NoError(t, err)
	assert.Equal(t, command.AddSalt, got.Steps[0].Command)
}

func TestProposeRejectsNonCanonicalStepThenRetries(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("create_plan", `{"tasks":[{"title":"Open the cabinet","command":"Open the cabinet"}]}`),
		toolResponse("create_plan", `{"tasks":[{"title":"Open the cabinet","command":"Open the left cabinet door"}]}`),
	}}
	p := newTestPlanner(model)

	got, err := p.Propose(context.Background(), "open the cabinet", snapshot())
	require.NoError(t, err)
	assert.Equal(t, command.OpenCabinet, got.Steps[0].Command)
	assert.Equal(t, 2, model.calls)
}

func TestProposeFailsAfterRetryBudget(t *testing.T) {
	bad := toolResponse("create_plan", `{"tasks":[{"title":"x","command":"Wiggle the spatula"}]}`)
	model := &fakeModel{responses: []*llms.ContentResponse{bad, bad, bad, bad}}
	p := newTestPlanner(model, WithPlannerRetries(2))

	_, err := p.Propose(context.Background(), "goal", snapshot())
	require.ErrorIs(t, err, ErrPlanningFailed)
	assert.ErrorContains(t, err, "Wiggle the spatula")
	assert.Equal(t, 3, model.calls, "2 retries means 3 attempts total")
}

func TestProposeAnswersReadOnlyCallsMidLoop(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("get_current_plan", "{}"),
		toolResponse("get_robot_status", "{}"),
		toolResponse("create_plan", `{"tasks":[{"title":"Open the left cabinet door"}]}`),
	}}
	probed := false
	p := newTestPlanner(model, WithStatusProbe(func(ctx context.Context) (string, error) {
		probed = true
		return "idle", nil
	}))

	got, err := p.Propose(context.Background(), "open", snapshot())
	require.NoError(t, err)
	assert.True(t, probed)
	assert.Len(t, got.Steps, 1)
}

func TestProposeRejectsInvalidStateKeys(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("create_plan", `{"tasks":[{"title":"Open the left cabinet door","state_updates":{"oven_on":true}}]}`),
	}}
	store := kitchen.NewStore(kitchen.DefaultState())
	p := newTestPlanner(model, WithPlannerRetries(0), WithStateKeys(store.ValidKeys))

	_, err := p.Propose(context.Background(), "open", snapshot())
	require.ErrorIs(t, err, ErrPlanningFailed)
	assert.ErrorContains(t, err, "oven_on")
}

func TestProposeNudgesTextOnlyAnswer(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		textResponse("Sure, I will open the cabinet."),
		toolResponse("create_plan", `{"tasks":[{"title":"Open the left cabinet door"}]}`),
	}}
	p := newTestPlanner(model)

	got, err := p.Propose(context.Background(), "open", snapshot())
	require.NoError(t, err)
	assert.Len(t, got.Steps, 1)
}
