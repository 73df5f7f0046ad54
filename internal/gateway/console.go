package gateway

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// ConsoleGateway reads goals line by line from an input stream, normally
// stdin. Typing "cancel" aborts the running task; anything else is a goal.
type ConsoleGateway struct {
	Sink GoalSink

	in  io.Reader
	out io.Writer
	mu  sync.Mutex
}

func NewConsoleGateway(in io.Reader, out io.Writer, sink GoalSink) *ConsoleGateway {
	return &ConsoleGateway{Sink: sink, in: in, out: out}
}

func (cg *ConsoleGateway) Start() error {
	scanner := bufio.NewScanner(cg.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "cancel") {
			cg.Sink.Cancel()
			cg.Notify("Cancelling the current task...")
			continue
		}
		if err := cg.Sink.Submit(line); err != nil {
			log.Printf("Error submitting goal: %v", err)
			cg.Notify("Goal queue is full, try again in a moment.")
		}
	}
	return scanner.Err()
}

func (cg *ConsoleGateway) Notify(text string) error {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	_, err := fmt.Fprintln(cg.out, text)
	return err
}

func (cg *ConsoleGateway) Stop() error {
	return nil
}
