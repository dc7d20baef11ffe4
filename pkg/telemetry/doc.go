// Package telemetry groups the observability packages of the agent:
// logging (slog with PII redaction), metrics (Prometheus) and tracing
// (OpenTelemetry spans around each turn stage).
package telemetry
