// Package health serves the interview engine's liveness and readiness
// probes.
//
// Liveness (/healthz) only proves the process still answers HTTP. Readiness
// (/readyz) walks the registered dependency checks (typically the Postgres
// memory store, the Redis session tier, and the LLM credential pool) and
// turns the probe red when any of them fails, so the load balancer stops
// routing new interviews to a node that cannot serve them.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds each dependency probe so one hung backend cannot stall
// the whole readiness response.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency can
// serve traffic; it must respect context cancellation.
type Checker struct {
	// Name keys the check's result in the probe response, e.g. "postgres".
	Name string

	Check func(ctx context.Context) error
}

// report is the probe response body.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers the probe endpoints. The checker set is fixed at
// construction; Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a Handler over the given dependency checks.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz always answers 200. A process that got this far can serve HTTP.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every dependency check concurrently and answers 200 only when
// all of them pass. Each check gets its own checkTimeout deadline derived
// from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]string, len(h.checkers))
		ready  = true
	)
	for _, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := c.Check(ctx)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				ready = false
				return
			}
			checks[c.Name] = "ok"
		}()
	}
	wg.Wait()

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, report{Status: "fail", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, report{Status: "ok", Checks: checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
