package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/quincybot/quincy/internal/health"
	"github.com/quincybot/quincy/internal/soundboard"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) (status string, checks map[string]string) {
	t.Helper()
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Status, body.Checks
}

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()

	h := health.New(health.Checker{
		Name:  "broken",
		Check: func(context.Context) error { return errors.New("down") },
	})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if status, _ := decode(t, rec); status != "ok" {
		t.Errorf("body status = %q, want ok", status)
	}
}

func TestReadyzReportsEachChecker(t *testing.T) {
	t.Parallel()

	h := health.New(
		health.Checker{Name: "up", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "down", Check: func(context.Context) error { return errors.New("no route") }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	status, checks := decode(t, rec)
	if status != "fail" {
		t.Errorf("body status = %q, want fail", status)
	}
	if checks["up"] != "ok" {
		t.Errorf("checks[up] = %q, want ok", checks["up"])
	}
	if checks["down"] != "fail: no route" {
		t.Errorf("checks[down] = %q, want fail: no route", checks["down"])
	}
}

func TestReadyzAllPassing(t *testing.T) {
	t.Parallel()

	h := health.New(health.Checker{Name: "up", Check: func(context.Context) error { return nil }})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSoundLibraryChecker(t *testing.T) {
	t.Parallel()

	empty, err := soundboard.NewLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	if err := health.SoundLibrary(empty).Check(context.Background()); err == nil {
		t.Error("empty library: want a failing check")
	}

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "noises"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "noises", "bell.mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write sound: %v", err)
	}
	lib, err := soundboard.NewLibrary(root)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	if err := health.SoundLibrary(lib).Check(context.Background()); err != nil {
		t.Errorf("populated library check: %v", err)
	}
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	health.New().Register(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}
