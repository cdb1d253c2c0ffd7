// Package telemetry sets up OpenTelemetry tracing and metrics for a run.
//
// Spans go to stdout or an OTLP/HTTP collector depending on Config.Exporter; metrics are
// collected by a manual reader so a run can report its counters on exit without a
// metrics backend. With the exporter set to "none" every instrument is a no-op.
package telemetry
