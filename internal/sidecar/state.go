package sidecar

import "time"

// State represents the current state of the supervised worker.
type State string

// Worker states.
const (
	StateIdle     State = "idle"     // Not running
	StateStarting State = "starting" // Being started
	StateRunning  State = "running"  // Active
	StateError    State = "error"    // Failed to start or crashed
)

// Info is a snapshot of the supervised worker.
type Info struct {
	State      State
	PID        int
	StartedAt  time.Time
	Generation uint64
	LastError  string
}
