package sidecar

import (
	"context"
	"strconv"
	"time"

	"github.com/mixstudio/mixdeck/internal/logging"
)

// Defaults for the worker invocation.
const (
	DefaultName     = "mix"
	DefaultHTTPPort = 8088
)

// DefaultArgs returns the fixed argument vector the worker is launched with.
func DefaultArgs(configPath string, port int) []string {
	return []string{
		"-c", configPath,
		"--http-port", strconv.Itoa(port),
		"--dangerously-skip-permissions",
		"-d",
	}
}

// OutputHandler receives output lines from the worker process.
// Implementations can forward output to the event bus, log sinks, etc.
type OutputHandler interface {
	HandleLine(source, line string)
}

// StateChangeCallback is called when the worker state transitions.
// Used for domain-specific reactions (events, metrics).
type StateChangeCallback func(oldState, newState State, err error)

// ReadyCheck probes whether the worker is ready to serve requests.
// It should return nil once the worker's control surface responds.
type ReadyCheck func(ctx context.Context) error

// Options configures a new Supervisor.
type Options struct {
	// Name is the worker executable to launch (required).
	Name string

	// Args is the fixed argument vector passed to the worker.
	Args []string

	// Ready is an optional readiness probe polled after a successful spawn.
	// When nil, Start falls back to waiting GraceDelay.
	Ready ReadyCheck

	// ReadyTimeout bounds the total readiness polling window.
	ReadyTimeout time.Duration

	// ReadyInterval is the delay between readiness probe attempts.
	ReadyInterval time.Duration

	// GraceDelay is the fixed wait after spawn when no Ready probe is set.
	GraceDelay time.Duration

	// GracefulTimeout is how long Stop waits after SIGTERM before force kill.
	GracefulTimeout time.Duration

	// KillTimeout bounds the wait for process exit after a force kill.
	KillTimeout time.Duration

	// OutputHandler receives each line of worker stdout/stderr (optional).
	OutputHandler OutputHandler

	// OnStateChange is called when the worker state transitions (optional).
	OnStateChange StateChangeCallback

	// Logger for supervisor operations. If nil, output is discarded.
	Logger logging.Logger
}

// withDefaults fills in zero-valued fields.
func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 10 * time.Second
	}
	if o.ReadyInterval <= 0 {
		o.ReadyInterval = 250 * time.Millisecond
	}
	if o.GraceDelay <= 0 {
		o.GraceDelay = time.Second
	}
	if o.GracefulTimeout <= 0 {
		o.GracefulTimeout = 5 * time.Second
	}
	if o.KillTimeout <= 0 {
		o.KillTimeout = 5 * time.Second
	}
	return o
}
