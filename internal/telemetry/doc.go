// Package telemetry wires OpenTelemetry tracing into the dispatch pipeline:
// provider setup, an action filter that opens one span per executed action,
// and an exception logger that records faults on the active span.
package telemetry
