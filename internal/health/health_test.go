package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func probeReadyz(t *testing.T, h *Handler) (int, report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, rep
}

func TestHealthzAlwaysOK(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadyzAllProbesPass(t *testing.T) {
	h := New(
		Checker{Name: "verses", Check: func(context.Context) error { return nil }},
		Checker{Name: "transcribe", Check: func(context.Context) error { return nil }},
	)

	code, rep := probeReadyz(t, h)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if rep.Status != "ok" {
		t.Errorf("status = %q, want ok", rep.Status)
	}
	for _, name := range []string{"verses", "transcribe"} {
		if rep.Checks[name] != "ok" {
			t.Errorf("check %s = %q, want ok", name, rep.Checks[name])
		}
	}
}

func TestReadyzFailingProbe(t *testing.T) {
	h := New(
		Checker{Name: "verses", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "transcribe", Check: func(context.Context) error { return nil }},
	)

	code, rep := probeReadyz(t, h)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if rep.Status != "fail" {
		t.Errorf("status = %q, want fail", rep.Status)
	}
	if rep.Checks["verses"] != "fail: connection refused" {
		t.Errorf("verses check = %q", rep.Checks["verses"])
	}
	if rep.Checks["transcribe"] != "ok" {
		t.Errorf("transcribe check = %q, want ok", rep.Checks["transcribe"])
	}
}

func TestReadyzNoProbes(t *testing.T) {
	code, rep := probeReadyz(t, New())
	if code != http.StatusOK || rep.Status != "ok" {
		t.Errorf("code=%d status=%q, want 200/ok", code, rep.Status)
	}
}

func TestReadyzProbesRunConcurrently(t *testing.T) {
	// Each probe waits for the other to arrive; sequential evaluation would
	// block until the per-probe timeout fires.
	var barrier sync.WaitGroup
	barrier.Add(2)
	probe := func(ctx context.Context) error {
		barrier.Done()
		met := make(chan struct{})
		go func() {
			barrier.Wait()
			close(met)
		}()
		select {
		case <-met:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h := New(
		Checker{Name: "a", Check: probe},
		Checker{Name: "b", Check: probe},
	)

	code, _ := probeReadyz(t, h)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
}

func TestReadyzHonoursRequestContext(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRegisterMountsRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New(Checker{Name: "verses", Check: func(context.Context) error { return nil }}).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
