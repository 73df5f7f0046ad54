package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePhase     EventType = "phase"
	EventTypePlan      EventType = "plan"
	EventTypeStep      EventType = "step"
	EventTypeState     EventType = "state"
	EventTypeReview    EventType = "review"
	EventTypeOutcome   EventType = "outcome"
	EventTypeError     EventType = "error"
	EventTypeOracle    EventType = "oracle"
	EventTypeHeartbeat EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	PlanID    string    `json:"plan_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. Oracle traffic additionally goes to a
// jsonl file so long planning sessions stay inspectable after the fact.
type Logger struct {
	oracleLogPath string
	maxSize       int64
}

func NewLogger() *Logger {
	return &Logger{
		oracleLogPath: filepath.Join("logs", "oracle.jsonl"),
		maxSize:       10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeOracle {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.oracleLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.oracleLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.oracleLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.oracleLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.oracleLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPhase(planID, phase string) {
	l.Log(Event{
		Type:   EventTypePhase,
		PlanID: planID,
		Data:   map[string]string{"phase": phase},
	})
}

func (l *Logger) LogStep(planID string, index int, description, status string) {
	l.Log(Event{
		Type:   EventTypeStep,
		PlanID: planID,
		Data: map[string]any{
			"index":       index,
			"description": description,
			"status":      status,
		},
	})
}

func (l *Logger) LogError(planID, kind, offending string) {
	l.Log(Event{
		Type:   EventTypeError,
		PlanID: planID,
		Data: map[string]string{
			"kind":      kind,
			"offending": offending,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogOracle(planID, role string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:   EventTypeOracle,
		PlanID: planID,
		Data: map[string]any{
			"role":       role,
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
