// Package observability provides the service's logging, metrics,
// tracing, health and shutdown plumbing.
//
// # Overview
//
// Logger wraps stdlib slog with structured JSON output and chained
// fields. Metrics registers Prometheus collectors for the HTTP surface
// and the authorization core's business events. HealthChecker exposes
// liveness and readiness probes over the database and Redis. Setup
// installs an OpenTelemetry tracer provider, and Shutdowner runs
// ordered cleanup on termination.
//
// # Related Packages
//
//   - pkg/api: wires the probes and the metrics endpoint.
//   - pkg/middleware: records request metrics.
package observability
