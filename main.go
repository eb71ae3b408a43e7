package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/mixstudio/mixdeck/cmd"
	"github.com/mixstudio/mixdeck/internal/api"
	"github.com/mixstudio/mixdeck/internal/config"
	"github.com/mixstudio/mixdeck/internal/events"
	"github.com/mixstudio/mixdeck/internal/logging"
	"github.com/mixstudio/mixdeck/internal/metrics"
	"github.com/mixstudio/mixdeck/internal/sidecar"
	"github.com/mixstudio/mixdeck/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8089" toml:"server.port" env:"MIXDECK_PORT"`

	// Worker settings
	SidecarName       string `help:"Worker executable name" default:"mix" toml:"sidecar.name" env:"SIDECAR_NAME"`
	SidecarEnabled    bool   `help:"Start the worker automatically on boot" default:"true" toml:"sidecar.enabled" env:"SIDECAR_ENABLED"`
	SidecarConfig     string `help:"Config file passed to the worker" default:"mix.toml" toml:"sidecar.config" env:"MIXDECK_SIDECAR_CONFIG"`
	SidecarPort       int    `help:"HTTP port the worker listens on" default:"8088" toml:"sidecar.port" env:"MIXDECK_SIDECAR_PORT"`
	ReadyTimeoutSec   int    `help:"Readiness probe window in seconds" default:"10" toml:"sidecar.ready_timeout_sec" env:"MIXDECK_READY_TIMEOUT_SEC"`
	RequestTimeoutSec int    `help:"Worker request timeout in seconds" default:"120" toml:"sidecar.request_timeout_sec" env:"MIXDECK_REQUEST_TIMEOUT_SEC"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"MIXDECK_AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"MIXDECK_AUTH_PASSWORD"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-updates" default:"mixstudio/mixdeck" toml:"update.repository" env:"MIXDECK_UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases when checking for updates" default:"false" toml:"update.prerelease" env:"MIXDECK_UPDATE_PRERELEASE"`
	UpdateEnabled    bool   `help:"Enable the self-update service" default:"true" toml:"update.enabled" env:"MIXDECK_UPDATE_ENABLED"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"MIXDECK_LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"MIXDECK_LOGGING_FORMAT"`
	LoggingSidecar string `help:"Worker supervision logging level" default:"info" toml:"logging.sidecar" env:"MIXDECK_LOGGING_SIDECAR"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"MIXDECK_LOGGING_API"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			fmt.Println("Warning: failed to load config:", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"sidecar": opts.LoggingSidecar,
				"api":     opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Forward log entries to SSE subscribers with a stable sequence number
		var logSeq atomic.Uint64
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		// Control client probes and talks to the worker's own HTTP surface
		workerBaseURL := fmt.Sprintf("http://127.0.0.1:%d", opts.SidecarPort)

		var supervisor *sidecar.Supervisor
		client := sidecar.NewControlClient(workerBaseURL,
			func() bool { return supervisor != nil && supervisor.IsRunning() },
			sidecar.WithRequestTimeout(time.Duration(opts.RequestTimeoutSec)*time.Second),
			sidecar.WithClientLogger(logging.GetLogger("sidecar")),
		)

		workerLogger := logging.GetLogger(opts.SidecarName)

		supervisor = sidecar.NewSupervisor(sidecar.Options{
			Name:         opts.SidecarName,
			Args:         sidecar.DefaultArgs(opts.SidecarConfig, opts.SidecarPort),
			Ready:        client.Probe,
			ReadyTimeout: time.Duration(opts.ReadyTimeoutSec) * time.Second,
			Logger:       logging.GetLogger("sidecar"),
			OutputHandler: outputFunc(func(source, line string) {
				workerLogger.Info(line, "stream", source)
				eventBus.Publish(events.WorkerOutputEvent{
					Stream:    source,
					Line:      line,
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}),
			OnStateChange: func(oldState, newState sidecar.State, err error) {
				now := time.Now().Format(time.RFC3339)
				switch newState {
				case sidecar.StateRunning:
					metrics.SetSidecarUp(true)
					metrics.IncSidecarStarts()
					info := supervisor.Status()
					eventBus.Publish(events.WorkerStartedEvent{
						Name:      opts.SidecarName,
						PID:       info.PID,
						Timestamp: now,
					})
				case sidecar.StateIdle:
					metrics.SetSidecarUp(false)
					eventBus.Publish(events.WorkerStoppedEvent{
						Name:      opts.SidecarName,
						Timestamp: now,
					})
				case sidecar.StateError:
					metrics.SetSidecarUp(false)
					reason := crashReason(err)
					metrics.IncSidecarCrashes(reason)
					eventBus.Publish(events.WorkerCrashedEvent{
						Name:      opts.SidecarName,
						Error:     errString(err),
						Timestamp: now,
					})
				}
			},
		})

		// Self-update service; disabled builds fall back to 503 routes
		var updateService updater.Service
		if opts.UpdateEnabled {
			svc, updErr := updater.NewService(&updater.Options{
				Repository: opts.UpdateRepository,
				Prerelease: opts.UpdatePrerelease,
				OnStateChange: func(state updater.State, targetVersion string, err error) {
					eventBus.Publish(events.UpdateStateEvent{
						State:     string(state),
						Version:   targetVersion,
						Error:     errString(err),
						Timestamp: time.Now().Format(time.RFC3339),
					})
				},
			})
			if updErr != nil {
				logger.Warn("Failed to initialize update service", "error", updErr)
			} else {
				updateService = svc
			}
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Supervisor:        supervisor,
			Client:            client,
			UpdateService:     updateService,
			EventBus:          eventBus,
			PrometheusHandler: metrics.Handler(),
		})

		// Restart the worker when its config file changes on disk
		watcher := config.NewConfigWatcher(opts.SidecarConfig,
			func(path string) (string, error) { return path, nil },
			logging.GetLogger("sidecar"),
		)
		watcher.OnReload(func(path string) {
			eventBus.Publish(events.ConfigReloadedEvent{
				Path:      path,
				Timestamp: time.Now().Format(time.RFC3339),
			})
			if !supervisor.IsRunning() {
				return
			}
			logger.Info("Worker config changed, restarting worker", "path", path)
			if stopErr := supervisor.Stop(); stopErr != nil {
				logger.Error("Failed to stop worker for config reload", "error", stopErr)
				return
			}
			if startErr := supervisor.Start(context.Background()); startErr != nil {
				logger.Error("Failed to restart worker after config reload", "error", startErr)
			}
		})

		hooks.OnStart(func() {
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Failed to watch worker config", "error", watchErr)
			}

			if opts.SidecarEnabled {
				logger.Info("Starting worker", "name", opts.SidecarName)
				if startErr := supervisor.Start(context.Background()); startErr != nil {
					logger.Error("Failed to start worker", "error", startErr)
				}
			} else {
				logger.Info("Worker autostart disabled", "name", opts.SidecarName)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("Error stopping config watcher", "error", stopErr)
			}

			// Guarantee the worker does not outlive the shell
			supervisor.Close()
		})
	})

	cli.Root().AddCommand(cmd.CreatePromptCmd())

	cli.Run()
}

// outputFunc adapts a function to the sidecar.OutputHandler interface.
type outputFunc func(source, line string)

func (f outputFunc) HandleLine(source, line string) { f(source, line) }

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// crashReason maps a worker failure to a metrics label.
func crashReason(err error) string {
	switch sidecar.CodeOf(err) {
	case sidecar.ErrCodeIOError:
		return "io_error"
	case sidecar.ErrCodeSpawnFailed:
		return "spawn_failed"
	default:
		return "abnormal_exit"
	}
}
