package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/meera/souschef/internal/command"
)

// ErrNonCanonicalCommand means a string outside the whitelist reached the
// dispatch boundary. The check happens client-side before any IO, because
// the actuator's interpretation of an unrecognized string is undefined.
var ErrNonCanonicalCommand = fmt.Errorf("non-canonical command")

// ErrUnreachable means the actuator could not be reached after the retry
// budget was spent. Never reported as a silent success.
var ErrUnreachable = fmt.Errorf("actuator unreachable")

// StopMode selects how the robot decides a motion is finished.
type StopMode string

const (
	StopAngle StopMode = "angle"
	StopTime  StopMode = "time"
)

// Outcome is the result of a single dispatch. Simulated outcomes are
// synthesized in simulation mode and must stay distinguishable from real
// actuator replies.
type Outcome struct {
	Command   string    `json:"command"`
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Simulated bool      `json:"simulated"`
	Timestamp time.Time `json:"timestamp"`
}

// taskRequest is the wire shape the robot controller accepts, one JSON
// object per dispatch.
type taskRequest struct {
	Command             string `json:"command"`
	LanguageInstruction string `json:"language_instruction,omitempty"`
	ActionsToExecute    int    `json:"actions_to_execute,omitempty"`
	UseAngleStop        bool   `json:"use_angle_stop,omitempty"`
}

// Client sends canonical commands to the physical or simulated executor over
// a persistent TCP connection.
type Client struct {
	addr        string
	registry    *command.Registry
	simulate    bool
	maxRetries  int
	dialTimeout time.Duration
	ioTimeout   time.Duration

	conn net.Conn
}

type Option func(*Client)

// WithSimulation makes the client synthesize deterministic success outcomes
// instead of touching the network.
func WithSimulation(on bool) Option {
	return func(c *Client) { c.simulate = on }
}

// WithMaxRetries caps transport retries per dispatch (default 2).
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithTimeouts(dial, io time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = dial
		c.ioTimeout = io
	}
}

func NewClient(addr string, registry *command.Registry, opts ...Option) *Client {
	c := &Client{
		addr:        addr,
		registry:    registry,
		maxRetries:  2,
		dialTimeout: 5 * time.Second,
		ioTimeout:   60 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Simulated reports whether the client runs in declared simulation mode.
func (c *Client) Simulated() bool {
	return c.simulate
}

// Dispatch sends one canonical command to the actuator. The registry check
// runs before any network attempt; a non-canonical string produces a failed
// outcome and no transport call. Transport failures are retried with
// exponential backoff before surfacing ErrUnreachable.
func (c *Client) Dispatch(ctx context.Context, cmd string, actions int, stop StopMode) (Outcome, error) {
	if !c.registry.IsValid(cmd) {
		log.Printf("[Robot] REJECT non-canonical: %s", cmd)
		return Outcome{
			Command:   cmd,
			Success:   false,
			Status:    "rejected: not in canonical command set",
			Timestamp: time.Now().UTC(),
		}, fmt.Errorf("%w: %q", ErrNonCanonicalCommand, cmd)
	}

	req := taskRequest{
		Command:             "execute_task",
		LanguageInstruction: cmd,
		ActionsToExecute:    actions,
		UseAngleStop:        stop == StopAngle,
	}

	if c.simulate {
		log.Printf("[Robot] DRY-RUN %s", cmd)
		return Outcome{
			Command:   cmd,
			Success:   true,
			Status:    "simulated",
			Simulated: true,
			Timestamp: time.Now().UTC(),
		}, nil
	}

	resp, err := c.sendWithRetry(ctx, req)
	if err != nil {
		return Outcome{
			Command:   cmd,
			Success:   false,
			Status:    err.Error(),
			Timestamp: time.Now().UTC(),
		}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	// The controller replies with free-form status text; anything mentioning
	// an error counts as a failed action.
	success := !strings.Contains(strings.ToLower(resp), "error")
	log.Printf("[Robot] %s execute: %s", map[bool]string{true: "OK", false: "ERR"}[success], cmd)
	return Outcome{
		Command:   cmd,
		Success:   success,
		Status:    resp,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Status asks the controller for its current status report.
func (c *Client) Status(ctx context.Context) (string, error) {
	if c.simulate {
		return "simulated: robot idle", nil
	}
	resp, err := c.sendWithRetry(ctx, taskRequest{Command: "get_status"})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}

// Close drops the persistent connection if one is open.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) sendWithRetry(ctx context.Context, req taskRequest) (string, error) {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[Robot] retrying in %v (attempt %d/%d)", backoff, attempt, c.maxRetries)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := c.send(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		// A failed exchange poisons the persistent connection.
		c.Close()
	}
	return "", lastErr
}

func (c *Client) send(ctx context.Context, req taskRequest) (string, error) {
	if c.conn == nil {
		d := net.Dialer{Timeout: c.dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			return "", err
		}
		c.conn = conn
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", err
	}

	if _, err := c.conn.Write(payload); err != nil {
		return "", err
	}

	buf := make([]byte, 64*1024)
	n, err := c.conn.Read(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
