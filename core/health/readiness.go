package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/mainsync/core/logger"
)

// Readiness runs every check in order. Returns "READY" if all pass and
// 503 Service Unavailable on the first failure.
//
// Example:
//
//	mux.Handle("/health/ready", health.Readiness(log,
//		rt.Synchronizer().Healthcheck,
//	))
func Readiness(log *slog.Logger, checks ...func(context.Context) error) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
				writeText(w, http.StatusServiceUnavailable, "NOT READY")
				return
			}
		}
		writeText(w, http.StatusOK, "READY")
	})
}
