// Package logging provides a minimal logging interface and adapters for sessionmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the registry, dispatcher and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - SessionLogger with component / user / request context
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	mesh, err := sessionmesh.New(func(o *sessionmesh.Options) { o.Logger = logger })
package logging
