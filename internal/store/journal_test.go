package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meera/souschef/internal/actuator"
	"github.com/meera/souschef/internal/command"
	"github.com/meera/souschef/internal/plan"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecordsPlanAndOutcomes(t *testing.T) {
	j := newTestJournal(t)

	p := plan.New("open the cabinet", []plan.Step{
		{Description: command.OpenCabinet, Command: command.OpenCabinet},
	}, plan.ProvenanceOriginal)
	require.NoError(t, j.RecordPlan(p))

	out := actuator.Outcome{
		Command:   command.OpenCabinet,
		Success:   true,
		Status:    "done",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, j.RecordOutcome(p.ID, 1, out))

	recs, err := j.PlanOutcomes(p.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, command.OpenCabinet, recs[0].Command)
	assert.True(t, recs[0].Success)
	assert.False(t, recs[0].Simulated)
	assert.Equal(t, 1, recs[0].StepIndex)
}

func TestJournalRecentOutcomesNewestFirst(t *testing.T) {
	j := newTestJournal(t)

	for i, cmd := range []string{command.OpenCabinet, command.RemoveLid, command.AddSalt} {
		require.NoError(t, j.RecordOutcome("p1", i+1, actuator.Outcome{
			Command:   cmd,
			Success:   true,
			Simulated: true,
			Timestamp: time.Now().UTC(),
		}))
	}

	recs, err := j.RecentOutcomes(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, command.AddSalt, recs[0].Command)
	assert.Equal(t, command.RemoveLid, recs[1].Command)
	assert.True(t, recs[0].Simulated)
}
