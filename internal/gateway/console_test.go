package gateway

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	goals   []string
	cancels int
	err     error
}

func (f *fakeSink) Submit(goal string) error {
	if f.err != nil {
		return f.err
	}
	f.goals = append(f.goals, goal)
	return nil
}

func (f *fakeSink) Cancel() { f.cancels++ }

func TestConsoleGatewaySubmitsGoals(t *testing.T) {
	sink := &fakeSink{}
	in := strings.NewReader("make a pineapple smoothie\n\n  open the cabinet  \n")
	out := &bytes.Buffer{}

	cg := NewConsoleGateway(in, out, sink)
	require.NoError(t, cg.Start())

	assert.Equal(t, []string{"make a pineapple smoothie", "open the cabinet"}, sink.goals)
	assert.Zero(t, sink.cancels)
}

func TestConsoleGatewayCancelKeyword(t *testing.T) {
	sink := &fakeSink{}
	out := &bytes.Buffer{}

	cg := NewConsoleGateway(strings.NewReader("CANCEL\n"), out, sink)
	require.NoError(t, cg.Start())

	assert.Equal(t, 1, sink.cancels)
	assert.Empty(t, sink.goals)
	assert.Contains(t, out.String(), "Cancelling")
}

func TestConsoleGatewayNotify(t *testing.T) {
	out := &bytes.Buffer{}
	cg := NewConsoleGateway(strings.NewReader(""), out, &fakeSink{})

	require.NoError(t, cg.Notify("Plan approved, executing 6 steps."))
	assert.Equal(t, "Plan approved, executing 6 steps.\n", out.String())
}
