// Package telemetry provides observability instrumentation for quarry:
// structured logging (zerolog), metrics (Prometheus) and tracing
// (OpenTelemetry). The store accepts any subset; missing collaborators
// default to no-ops.
package telemetry
