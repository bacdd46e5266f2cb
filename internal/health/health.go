// Package health serves voxgate's liveness and readiness probes.
//
// The package exposes two endpoints:
//
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map containing the result of each named checker.
//
// Beyond the generic [Checker]/[Handler] plumbing, this package also owns
// the two checks voxgate actually registers: [EngineChecker] and
// [LimiterChecker], built around the concrete `*engine.Adapter` and
// `*limiter.Limiter` the process constructs at startup, so `cmd/voxgate`
// doesn't need to hand-write readiness closures over its own internals.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/riftwave/voxgate/internal/engine"
	"github.com/riftwave/voxgate/internal/limiter"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "engine",
	// "limiter"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// EngineChecker reports unhealthy if adapter is nil, i.e. the whisper.cpp
// model failed to load or was never constructed. A non-nil adapter is
// assumed healthy: once the model is loaded it is never unloaded except at
// process shutdown, so there is nothing further to probe per request.
func EngineChecker(adapter *engine.Adapter) Checker {
	return Checker{
		Name: "engine",
		Check: func(context.Context) error {
			if adapter == nil {
				return errors.New("whisper model not loaded")
			}
			return nil
		},
	}
}

// LimiterChecker reports unhealthy if lim is nil, was constructed with zero
// capacity, or is fully saturated (every lease currently in flight), since a
// saturated limiter means the gateway cannot start a new transcription
// without first queuing behind whatever holds the outstanding leases.
func LimiterChecker(lim *limiter.Limiter) Checker {
	return Checker{
		Name: "limiter",
		Check: func(context.Context) error {
			if lim == nil {
				return errors.New("limiter not constructed")
			}
			capacity := lim.Capacity()
			if capacity < 1 {
				return errors.New("limiter has zero capacity")
			}
			if inFlight := lim.InFlight(); inFlight >= capacity {
				return fmt.Errorf("limiter saturated: %d/%d leases in flight", inFlight, capacity)
			}
			return nil
		},
	}
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request. The checkers are evaluated sequentially in the order provided.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
