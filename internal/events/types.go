package events

// Event type constants for kelindar/event.
const (
	TypeWorkerStarted uint32 = iota + 1
	TypeWorkerStopped
	TypeWorkerCrashed
	TypeWorkerOutput
	TypeConfigReloaded
	TypeLogEntry
	TypeUpdateState
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// WorkerStartedEvent is published when the sidecar worker has been spawned
// and passed its readiness check.
type WorkerStartedEvent struct {
	Name      string `json:"name" example:"mix" doc:"Worker binary name"`
	PID       int    `json:"pid" example:"41523" doc:"Process ID of the spawned worker"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WorkerStartedEvent.
func (e WorkerStartedEvent) Type() uint32 { return TypeWorkerStarted }

// WorkerStoppedEvent is published when the worker exits after an explicit stop.
type WorkerStoppedEvent struct {
	Name      string `json:"name" example:"mix" doc:"Worker binary name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WorkerStoppedEvent.
func (e WorkerStoppedEvent) Type() uint32 { return TypeWorkerStopped }

// WorkerCrashedEvent is published when the worker terminates without being asked to.
type WorkerCrashedEvent struct {
	Name      string `json:"name" example:"mix" doc:"Worker binary name"`
	ExitCode  int    `json:"exit_code" example:"1" doc:"Worker exit code"`
	Error     string `json:"error" doc:"Human-readable failure description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WorkerCrashedEvent.
func (e WorkerCrashedEvent) Type() uint32 { return TypeWorkerCrashed }

// WorkerOutputEvent carries a single line of worker stdout or stderr.
type WorkerOutputEvent struct {
	Stream    string `json:"stream" example:"stdout" doc:"Source stream: stdout or stderr"`
	Line      string `json:"line" doc:"Raw output line"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WorkerOutputEvent.
func (e WorkerOutputEvent) Type() uint32 { return TypeWorkerOutput }

// ConfigReloadedEvent is published when the worker config file changes on disk.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"/home/user/.config/mix/config.toml" doc:"Changed config file path"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// UpdateStateEvent reports self-update progress transitions.
type UpdateStateEvent struct {
	State     string `json:"state" example:"downloading" doc:"Update state: checking, downloading, applying, done, failed"`
	Version   string `json:"version,omitempty" example:"1.2.0" doc:"Target version, when known"`
	Error     string `json:"error,omitempty" doc:"Failure description, when state is failed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for UpdateStateEvent.
func (e UpdateStateEvent) Type() uint32 { return TypeUpdateState }
