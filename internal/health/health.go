// Package health serves the liveness and readiness probes mounted on the
// operator mux.
//
// /healthz answers 200 whenever the process can serve HTTP. /readyz probes
// every registered dependency (verse store, transcription backend) and
// answers 503 until all of them pass, so a load balancer holds traffic while
// a Postgres corpus is still migrating or a whisper endpoint is down.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// probeTimeout bounds each individual readiness probe.
const probeTimeout = 3 * time.Second

// Checker is one named readiness probe. Check returns nil when the
// dependency can serve and an error describing the outage otherwise.
type Checker struct {
	// Name keys the probe result in the /readyz body, e.g. "verses".
	Name string

	// Check must honour ctx; it is called with a deadline on every request.
	Check func(ctx context.Context) error
}

// Handler answers the probe routes. The probe set is fixed at construction;
// the handler itself carries no mutable state.
type Handler struct {
	checkers []Checker
}

// New builds a Handler over the given probes.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// report is the probe response body.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports liveness. Reaching the handler is the whole check.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every probe concurrently and reports 503 if any fails. Each
// probe gets its own [probeTimeout] deadline derived from the request.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		failed bool
	)

	var wg sync.WaitGroup
	for _, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
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

	rep := report{Status: "ok", Checks: checks}
	code := http.StatusOK
	if failed {
		rep.Status = "fail"
		code = http.StatusServiceUnavailable
	}
	h.respond(w, code, rep)
}

func (h *Handler) respond(w http.ResponseWriter, code int, rep report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
