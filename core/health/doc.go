// Package health provides HTTP handlers for probing a running tick loop.
//
// Handlers:
//   - Liveness: Process is running (no checks)
//   - Readiness: Every check passes, for example synchronizer.Healthcheck
//
// Usage:
//
//	mux := http.NewServeMux()
//	mux.Handle("/health/live", health.Liveness())
//	mux.Handle("/health/ready", health.Readiness(log, rt.Synchronizer().Healthcheck))
//
// Checks must follow the func(context.Context) error signature.
package health
