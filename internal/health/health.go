// Package health answers liveness and readiness probes.
//
// /healthz reports 200 whenever the process can serve HTTP at all.
// /readyz runs every registered [Checker] and reports 200 only when all
// of them pass, so a load balancer keeps traffic away while the corpus
// index, the encoder, or the history store is unavailable.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds each readiness check. A wedged dependency makes
// the check fail instead of stalling the probe.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency
// can serve and an error naming the problem otherwise; it must honor
// ctx cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// report is the JSON body both probes answer with.
type report struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Handler serves the two probe routes. Construction fixes the version
// and checker set; after that it is safe for concurrent use.
type Handler struct {
	version  string
	checkers []Checker
}

// New creates a Handler reporting the given build version. Checkers run
// on every /readyz request.
func New(version string, checkers ...Checker) *Handler {
	return &Handler{
		version:  version,
		checkers: append([]Checker(nil), checkers...),
	}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok", Version: h.version})
}

// Readyz runs all checkers concurrently, each under its own timeout,
// and answers 503 as soon as any of them reports a problem. The
// response lists every check by name so operators see which dependency
// is down, not just that one is.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]string, len(h.checkers))
		failed bool
	)

	for _, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				failed = true
				return
			}
			checks[c.Name] = "ok"
		}()
	}
	wg.Wait()

	res := report{Status: "ok", Version: h.version, Checks: checks}
	status := http.StatusOK
	if failed {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register mounts both probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON sends v with the given status. The status line is already
// out when encoding runs, so a failure can only be logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("probe encoding failed", slog.Any("error", err))
	}
}
