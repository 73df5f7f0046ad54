package observability

import (
	"sync"
	"time"
)

type Mode string

const (
	ModeIdle       Mode = "IDLE"
	ModePlanning   Mode = "PLANNING"
	ModeValidating Mode = "VALIDATING"
	ModeExecuting  Mode = "EXECUTING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentMode   Mode
	ActiveStep    string
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	CurrentMode:   ModeIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(mode Mode, step string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentMode = mode
	globalStatus.ActiveStep = step
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (Mode, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentMode, globalStatus.ActiveStep, globalStatus.LastHeartbeat
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
