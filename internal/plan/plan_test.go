package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meera/souschef/internal/command"
	"github.com/meera/souschef/internal/kitchen"
)

func twoStepPlan() *Plan {
	return New("open the cabinet", []Step{
		{Description: "Open the cabinet door", Command: command.OpenCabinet, Effects: kitchen.State{"cabinet_open": true}},
		{Description: "Confirm with the user"},
	}, ProvenanceOriginal)
}

func TestNewAssignsAscendingIndexes(t *testing.T) {
	p := twoStepPlan()

	require.Len(t, p.Steps, 2)
	assert.Equal(t, 1, p.Steps[0].Index)
	assert.Equal(t, 2, p.Steps[1].Index)
	assert.False(t, p.Approved)
	assert.Equal(t, ProvenanceOriginal, p.Provenance)
	assert.NotEmpty(t, p.ID)
}

func TestCommandsSkipsInformationalSteps(t *testing.T) {
	p := twoStepPlan()
	assert.Equal(t, []string{command.OpenCabinet}, p.Commands())
}

func TestChecklistLoadMarkCompleteNextPending(t *testing.T) {
	c := NewChecklist()
	p := twoStepPlan()
	c.Load(p)

	next, ok := c.NextPending()
	require.True(t, ok)
	assert.Equal(t, 1, next.Index)

	require.NoError(t, c.MarkComplete(1))
	next, ok = c.NextPending()
	require.True(t, ok)
	assert.Equal(t, 2, next.Index)

	require.NoError(t, c.MarkComplete(2))
	_, ok = c.NextPending()
	assert.False(t, ok, "completing every step leaves no pending step")

	done, total := c.Progress()
	assert.Equal(t, 2, done)
	assert.Equal(t, 2, total)
}

func TestChecklistMarkCompleteUnknownStep(t *testing.T) {
	c := NewChecklist()
	assert.ErrorIs(t, c.MarkComplete(1), ErrUnknownStep)

	c.Load(twoStepPlan())
	assert.ErrorIs(t, c.MarkComplete(7), ErrUnknownStep)

	// Still a no-op: nothing was marked.
	done, _ := c.Progress()
	assert.Equal(t, 0, done)
}

func TestChecklistReloadResetsFlags(t *testing.T) {
	c := NewChecklist()
	p := twoStepPlan()
	c.Load(p)
	require.NoError(t, c.MarkComplete(1))

	revised := New(p.Goal, []Step{
		{Description: "Open the cabinet door", Command: command.OpenCabinet},
	}, ProvenanceRevised)
	c.Load(revised)

	done, total := c.Progress()
	assert.Equal(t, 0, done)
	assert.Equal(t, 1, total)
	assert.Equal(t, ProvenanceRevised, revised.Provenance)
}
