// Package logging provides structured logging with per-module log level configuration.
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to the systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Always mirrors entries into a ring buffer consumed by the UI log stream
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"sidecar": "debug",
//			"api":     "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("sidecar")
//	logger.Info("Worker started", "pid", pid)
//
// Module-specific levels override the global level for that module only.
// When running under journald, logs can be inspected with:
//
//	journalctl -t mixdeck -f
//	journalctl -t mixdeck MODULE=sidecar
package logging
