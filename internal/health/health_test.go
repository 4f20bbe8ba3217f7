package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) report {
	t.Helper()
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rep
}

func TestHealthzAlwaysOK(t *testing.T) {
	h := New(Checker{Name: "postgres", Check: func(context.Context) error {
		return errors.New("down")
	}})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", got)
	}
	if rep := decodeReport(t, rec); rep.Status != "ok" {
		t.Errorf("status field = %q", rep.Status)
	}
}

func TestReadyzAllDependenciesUp(t *testing.T) {
	ok := func(context.Context) error { return nil }
	h := New(
		Checker{Name: "postgres", Check: ok},
		Checker{Name: "redis", Check: ok},
		Checker{Name: "llm_gateway", Check: ok},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	rep := decodeReport(t, rec)
	if rep.Status != "ok" {
		t.Errorf("status field = %q", rep.Status)
	}
	for _, name := range []string{"postgres", "redis", "llm_gateway"} {
		if rep.Checks[name] != "ok" {
			t.Errorf("check %q = %q", name, rep.Checks[name])
		}
	}
}

func TestReadyzOneDependencyDown(t *testing.T) {
	h := New(
		Checker{Name: "postgres", Check: func(context.Context) error { return nil }},
		Checker{Name: "redis", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	rep := decodeReport(t, rec)
	if rep.Status != "fail" {
		t.Errorf("status field = %q", rep.Status)
	}
	if rep.Checks["postgres"] != "ok" {
		t.Errorf("postgres = %q", rep.Checks["postgres"])
	}
	if rep.Checks["redis"] != "fail: connection refused" {
		t.Errorf("redis = %q", rep.Checks["redis"])
	}
}

func TestReadyzNoCheckers(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with no checkers", rec.Code)
	}
}

func TestReadyzAllDependenciesDown(t *testing.T) {
	h := New(
		Checker{Name: "postgres", Check: func(context.Context) error { return errors.New("pool exhausted") }},
		Checker{Name: "redis", Check: func(context.Context) error { return errors.New("timeout") }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	rep := decodeReport(t, rec)
	if rep.Checks["postgres"] != "fail: pool exhausted" || rep.Checks["redis"] != "fail: timeout" {
		t.Errorf("checks = %v", rep.Checks)
	}
}

func TestReadyzChecksRunConcurrently(t *testing.T) {
	// Three slow checks back to back would take three sleeps; concurrent
	// execution keeps the probe close to a single one.
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := New(
		Checker{Name: "postgres", Check: slow},
		Checker{Name: "redis", Check: slow},
		Checker{Name: "llm_gateway", Check: slow},
	)

	rec := httptest.NewRecorder()
	start := time.Now()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	elapsed := time.Since(start)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if elapsed > 250*time.Millisecond {
		t.Errorf("readiness took %v, checks appear to run sequentially", elapsed)
	}
}

func TestReadyzRespectsRequestCancellation(t *testing.T) {
	h := New(Checker{Name: "postgres", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx)
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 after cancellation", rec.Code)
	}
	if rep := decodeReport(t, rec); rep.Checks["postgres"] == "ok" {
		t.Error("cancelled check reported ok")
	}
}
