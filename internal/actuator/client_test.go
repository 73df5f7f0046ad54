package actuator

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meera/souschef/internal/command"
)

// fakeRobot accepts connections, decodes one request per read and answers
// with a fixed status string.
type fakeRobot struct {
	ln       net.Listener
	reply    string
	conns    atomic.Int32
	requests atomic.Int32
	lastReq  atomic.Value // taskRequest
}

func newFakeRobot(t *testing.T, reply string) *fakeRobot {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeRobot{ln: ln, reply: reply}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			f.conns.Add(1)
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 64*1024)
				for {
					n, err := c.Read(buf)
					if err != nil {
						return
					}
					var req taskRequest
					if err := json.Unmarshal(buf[:n], &req); err == nil {
						f.lastReq.Store(req)
					}
					f.requests.Add(1)
					if _, err := c.Write([]byte(f.reply)); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return f
}

func TestDispatchRejectsNonCanonicalBeforeTransport(t *testing.T) {
	robot := newFakeRobot(t, "done")
	c := NewClient(robot.ln.Addr().String(), command.Default())
	defer c.Close()

	out, err := c.Dispatch(context.Background(), "Open the cabinet", 150, StopAngle)
	require.ErrorIs(t, err, ErrNonCanonicalCommand)
	assert.False(t, out.Success)
	assert.Equal(t, int32(0), robot.conns.Load(), "no transport call may happen for a rejected command")
}

func TestDispatchSendsWireProtocol(t *testing.T) {
	robot := newFakeRobot(t, "task completed")
	c := NewClient(robot.ln.Addr().String(), command.Default())
	defer c.Close()

	out, err := c.Dispatch(context.Background(), command.OpenCabinet, 150, StopAngle)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.False(t, out.Simulated)
	assert.Equal(t, "task completed", out.Status)

	req := robot.lastReq.Load().(taskRequest)
	assert.Equal(t, "execute_task", req.Command)
	assert.Equal(t, command.OpenCabinet, req.LanguageInstruction)
	assert.Equal(t, 150, req.ActionsToExecute)
	assert.True(t, req.UseAngleStop)
}

func TestDispatchReportsActuatorError(t *testing.T) {
	robot := newFakeRobot(t, "error: gripper jammed")
	c := NewClient(robot.ln.Addr().String(), command.Default())
	defer c.Close()

	out, err := c.Dispatch(context.Background(), command.AddSalt, 150, StopTime)
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestDispatchReusesPersistentConnection(t *testing.T) {
	robot := newFakeRobot(t, "ok")
	c := NewClient(robot.ln.Addr().String(), command.Default())
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.Dispatch(context.Background(), command.RemoveLid, 150, StopAngle)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), robot.conns.Load())
	assert.Equal(t, int32(3), robot.requests.Load())
}

func TestDispatchUnreachableAfterRetries(t *testing.T) {
	// Grab a port and close it so dials fail fast.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient(addr, command.Default(),
		WithMaxRetries(1),
		WithTimeouts(200*time.Millisecond, time.Second))

	start := time.Now()
	out, err := c.Dispatch(context.Background(), command.OpenCabinet, 150, StopAngle)
	require.ErrorIs(t, err, ErrUnreachable)
	assert.False(t, out.Success)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond, "retry must back off before the second attempt")
}

func TestSimulationSynthesizesTaggedSuccess(t *testing.T) {
	c := NewClient("127.0.0.1:1", command.Default(), WithSimulation(true))

	out, err := c.Dispatch(context.Background(), command.PlacePineapple, 150, StopAngle)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, out.Simulated, "simulated outcomes must be distinguishable")

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Contains(t, status, "simulated")
}

func TestStatusProbe(t *testing.T) {
	robot := newFakeRobot(t, "idle at home position")
	c := NewClient(robot.ln.Addr().String(), command.Default())
	defer c.Close()

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "idle at home position", status)

	req := robot.lastReq.Load().(taskRequest)
	assert.Equal(t, "get_status", req.Command)
}
