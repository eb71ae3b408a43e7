package sidecar

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mixstudio/mixdeck/internal/logging"
)

// workerHandle represents one spawned worker process. At most one live
// handle exists at any time; the generation id disambiguates handles
// across restarts.
type workerHandle struct {
	cmd        *exec.Cmd
	pid        int
	generation uint64
	startedAt  time.Time
	done       chan struct{} // closed once the process has been reaped
}

// Supervisor owns the worker's process handle and exposes the control
// plane: start, stop, status and last error. The handle and the sticky
// error are guarded by a single lock so callers never observe a torn
// view of "is running" versus "what went wrong".
type Supervisor struct {
	opts Options

	mu         sync.Mutex
	handle     *workerHandle
	lastErr    *Error
	generation uint64
	closed     bool

	logger logging.Logger
}

// NewSupervisor creates a supervisor for the configured worker.
// The worker is not started until Start is called.
func NewSupervisor(opts Options) *Supervisor {
	opts = opts.withDefaults()
	s := &Supervisor{opts: opts}
	if opts.Logger != nil {
		s.logger = opts.Logger
	} else {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// procEvent is one item on the monitor's event stream.
type procEvent struct {
	kind     procEventKind
	source   string
	line     string
	err      error
	exitCode int
}

type procEventKind int

const (
	evOutput procEventKind = iota
	evIOError
	evTerminated
)

// Start launches the worker if it is not already running. It is
// idempotent: a second call with a live handle returns success without
// side effects. The sticky last error is cleared at the beginning of
// every attempt.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return newError(ErrCodeSpawnFailed, "supervisor is shut down", nil)
	}
	if s.handle != nil {
		s.mu.Unlock()
		s.logger.Debug("Worker already running, start is a no-op")
		return nil
	}
	s.lastErr = nil

	gen, err := s.spawnLocked()
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		if cb := s.opts.OnStateChange; cb != nil {
			cb(StateStarting, StateError, err)
		}
		return err
	}
	s.mu.Unlock()

	if readyErr := s.awaitReady(ctx, gen); readyErr != nil {
		return readyErr
	}

	if cb := s.opts.OnStateChange; cb != nil {
		cb(StateStarting, StateRunning, nil)
	}
	return nil
}

// spawnLocked starts the worker process and installs a fresh handle.
// Caller must hold s.mu.
func (s *Supervisor) spawnLocked() (uint64, *Error) {
	cmd := exec.Command(s.opts.Name, s.opts.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, newError(ErrCodeSpawnFailed, fmt.Sprintf("failed to open stdout pipe for %q", s.opts.Name), err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, newError(ErrCodeSpawnFailed, fmt.Sprintf("failed to open stderr pipe for %q", s.opts.Name), err)
	}

	if err := cmd.Start(); err != nil {
		return 0, newError(ErrCodeSpawnFailed, fmt.Sprintf("failed to launch %q", s.opts.Name), err)
	}

	s.generation++
	gen := s.generation
	h := &workerHandle{
		cmd:        cmd,
		pid:        cmd.Process.Pid,
		generation: gen,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
	s.handle = h

	s.logger.Info("Worker started", "name", s.opts.Name, "pid", h.pid, "generation", gen)

	events := make(chan procEvent, 64)
	var readers sync.WaitGroup
	readers.Add(2)
	go s.streamOutput(stdout, "stdout", events, &readers)
	go s.streamOutput(stderr, "stderr", events, &readers)

	// Reap the process only after both pipe readers have drained,
	// since Wait closes the pipes.
	go func() {
		readers.Wait()
		waitErr := cmd.Wait()
		events <- procEvent{kind: evTerminated, exitCode: exitCodeFromError(waitErr), err: waitErr}
		close(events)
		close(h.done)
	}()

	go s.monitor(gen, events)

	return gen, nil
}

// awaitReady blocks until the worker is considered ready. With a Ready
// probe it polls until success or ReadyTimeout; without one it waits
// the fixed GraceDelay. It runs outside the state lock.
func (s *Supervisor) awaitReady(ctx context.Context, gen uint64) error {
	if s.opts.Ready == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.GraceDelay):
		}
		return s.verifyAlive(gen)
	}

	deadline := time.Now().Add(s.opts.ReadyTimeout)
	for {
		if err := s.verifyAlive(gen); err != nil {
			return err
		}

		probeCtx, cancel := context.WithTimeout(ctx, s.opts.ReadyInterval)
		err := s.opts.Ready(probeCtx)
		cancel()
		if err == nil {
			s.logger.Info("Worker is ready", "generation", gen)
			return nil
		}

		if time.Now().After(deadline) {
			// The process is alive but the probe never succeeded.
			// Report success so slow workers are not killed at boot.
			s.logger.Warn("Readiness probe timed out, assuming worker is up",
				"timeout", s.opts.ReadyTimeout, "error", err)
			return s.verifyAlive(gen)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.ReadyInterval):
		}
	}
}

// verifyAlive returns nil if the handle for generation gen is still
// installed, or the recorded failure if the worker died during startup.
func (s *Supervisor) verifyAlive(gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil && s.handle.generation == gen {
		return nil
	}
	if s.lastErr != nil {
		return s.lastErr
	}
	return newError(ErrCodeSpawnFailed, fmt.Sprintf("%q exited during startup", s.opts.Name), nil)
}

// Stop terminates the worker if it is running. It is idempotent: with
// no live handle it returns success and performs no action. The handle
// is cleared under the state lock before signalling, so a concurrent
// monitor observing the resulting termination event is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h == nil {
		return nil
	}

	s.logger.Info("Stopping worker", "pid", h.pid, "generation", h.generation)

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("Failed to send SIGTERM", "error", err)
	}

	select {
	case <-h.done:
	case <-time.After(s.opts.GracefulTimeout):
		s.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", s.opts.GracefulTimeout)
		if err := s.killGroup(h); err != nil {
			killErr := newError(ErrCodeIOError, "failed to kill worker", err)
			s.mu.Lock()
			s.lastErr = killErr
			s.mu.Unlock()
			return killErr
		}
		select {
		case <-h.done:
		case <-time.After(s.opts.KillTimeout):
			s.logger.Error("Worker did not exit after kill signal", "pid", h.pid)
		}
	}

	if cb := s.opts.OnStateChange; cb != nil {
		cb(StateRunning, StateIdle, nil)
	}
	return nil
}

// killGroup force-kills the worker's process group.
func (s *Supervisor) killGroup(h *workerHandle) error {
	if err := syscall.Kill(-h.pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		// Fall back to killing just the process
		if killErr := h.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return killErr
		}
	}
	return nil
}

// IsRunning reports whether a live worker handle is present.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// LastError returns the sticky error from the most recent failure, or
// nil if the last lifecycle transition was clean.
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return nil
	}
	return s.lastErr
}

// Status returns a consistent snapshot of the worker state.
func (s *Supervisor) Status() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{State: StateIdle}
	if s.lastErr != nil {
		info.State = StateError
		info.LastError = s.lastErr.Error()
	}
	if s.handle != nil {
		info.State = StateRunning
		info.PID = s.handle.pid
		info.StartedAt = s.handle.startedAt
		info.Generation = s.handle.generation
	}
	return info
}

// Close shuts the supervisor down, force-killing any live worker.
// After Close, Start returns an error. The worker process never
// outlives the supervisor.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h == nil {
		return
	}

	s.logger.Info("Supervisor closing, killing worker", "pid", h.pid)
	if err := s.killGroup(h); err != nil {
		s.logger.Error("Failed to kill worker on close", "error", err)
	}
	select {
	case <-h.done:
	case <-time.After(s.opts.KillTimeout):
		s.logger.Error("Worker did not exit on close", "pid", h.pid)
	}
}

// monitor consumes the event stream for one generation. It transitions
// to a terminal state on the first io-error or termination event and
// ignores anything the transport delivers afterwards. All state
// mutations are compare-and-clear keyed on the generation id, so a
// stale monitor can never affect a newer handle.
func (s *Supervisor) monitor(gen uint64, events <-chan procEvent) {
	terminal := false
	for ev := range events {
		if terminal {
			continue
		}
		switch ev.kind {
		case evOutput:
			if s.opts.OutputHandler != nil {
				s.opts.OutputHandler.HandleLine(ev.source, ev.line)
			}
		case evIOError:
			s.logger.Error("Worker output stream failed", "source", ev.source, "error", ev.err)
			s.finish(gen, newError(ErrCodeIOError,
				fmt.Sprintf("worker %s stream failed", ev.source), ev.err))
			terminal = true
		case evTerminated:
			if ev.exitCode == 0 {
				s.logger.Info("Worker exited cleanly", "generation", gen)
				s.finish(gen, nil)
			} else {
				s.logger.Error("Worker exited abnormally", "generation", gen, "exit_code", ev.exitCode)
				s.finish(gen, newError(ErrCodeAbnormalExit,
					fmt.Sprintf("worker exited with code %d", ev.exitCode), nil))
			}
			terminal = true
		}
	}
}

// finish applies a terminal event for generation gen: it clears the
// handle and records the failure, but only if the installed handle
// still belongs to that generation. Otherwise it is a no-op (the
// handle was already cleared by Stop, or a newer start replaced it).
func (s *Supervisor) finish(gen uint64, termErr *Error) {
	s.mu.Lock()
	if s.handle == nil || s.handle.generation != gen {
		s.mu.Unlock()
		return
	}
	s.handle = nil
	newState := StateIdle
	if termErr != nil {
		s.lastErr = termErr
		newState = StateError
	}
	cb := s.opts.OnStateChange
	s.mu.Unlock()

	if cb != nil {
		var err error
		if termErr != nil {
			err = termErr
		}
		cb(StateRunning, newState, err)
	}
}

// streamOutput reads one pipe line by line, emitting output events.
// A read failure other than pipe closure is surfaced as an io-error
// event, which the monitor treats as terminal.
func (s *Supervisor) streamOutput(r io.Reader, source string, events chan<- procEvent, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	// Worker output lines can be large (model responses)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		events <- procEvent{kind: evOutput, source: source, line: scanner.Text()}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		events <- procEvent{kind: evIOError, source: source, err: err}
	}
}

// exitCodeFromError extracts the exit code from a Wait error.
// Returns 0 for nil, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
