// Package logger provides a structured logging facility based on Zap.
//
// Logs are written to stderr; stdout belongs to the record stream.
//
// # Run Correlation
//
// ForRun attaches the run id and entity type to a logger, so every entry of one
// reconciliation pass can be correlated. WithRayID does the same for an HTTP request of
// the serve command, using the RayID set by the rayid middleware.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Encoding: json or console
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	l := logger.ForRun(log, runID, "community")
//	l.Error("Run failed", zap.Error(err))
package logger
