package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck reports whether a subsystem is ready; nil means ready.
type ReadyCheck func(ctx context.Context) error

// HealthHandler serves liveness: always 200 {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeHealth(rw, http.StatusOK, healthStatusOK, "")
	})
}

// ReadyHandler serves readiness: 503 with the first failing check's error,
// 200 otherwise.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, check := range checks {
			if err := check(hr.Context()); err != nil {
				writeHealth(rw, http.StatusServiceUnavailable, healthStatusUnavailable, err.Error())

				return
			}
		}

		writeHealth(rw, http.StatusOK, healthStatusOK, "")
	})
}

func writeHealth(rw http.ResponseWriter, code int, status, reason string) {
	body := map[string]string{"status": status}
	if reason != "" {
		body["reason"] = reason
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	// The status line is already written; encoding errors have no recipient.
	_ = json.NewEncoder(rw).Encode(body)
}

// NewMux builds the operational HTTP mux: /healthz, /readyz and, when
// providers expose one, /metrics. Every route is traced.
func NewMux(providers Providers, checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", HTTPMiddleware(providers.Tracer, HealthHandler()))
	mux.Handle("/readyz", HTTPMiddleware(providers.Tracer, ReadyHandler(checks...)))

	if providers.MetricsHandler != nil {
		mux.Handle("/metrics", HTTPMiddleware(providers.Tracer, providers.MetricsHandler))
	}

	return mux
}
