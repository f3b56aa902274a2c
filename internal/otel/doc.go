// Package otel provides the ambient observability stack shared by
// optify's Registry, Provider, and Watcher: structured logging
// (zerolog), build/composition metrics (Prometheus), and build/
// composition tracing (OpenTelemetry).
package otel
