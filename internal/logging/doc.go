// Package logging provides structured logging with per-module log level
// configuration.
//
// The system uses Go's slog package with automatic output routing: logs go
// to the systemd journal when available, to stdout when a terminal, pipe or
// file is connected, and to an in-memory ring buffer for diagnostics.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"monitor": "warn",
//		},
//	})
//
// Get a logger for a module:
//
//	logger := logging.GetLogger("encode")
//	logger.Info("frame encoded", "seq", seq, "bytes", n)
//
// Module-specific levels override the global level and can be changed at
// runtime by calling Initialize again (the config watcher does this when
// the config file changes).
//
// When running under systemd:
//
//	journalctl -t camnode -f
//	journalctl -t camnode MODULE=capture
package logging
