package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pschmitt/gcal-import-ics/internal/config"
	"github.com/pschmitt/gcal-import-ics/internal/sync"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Source = "https://example.com/cal.ics"
	return cfg
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	s := NewServer(testConfig(), func(ctx context.Context) (sync.Summary, error) {
		return sync.Summary{}, nil
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSyncTriggerRecordsStatus(t *testing.T) {
	t.Parallel()

	s := NewServer(testConfig(), func(ctx context.Context) (sync.Summary, error) {
		return sync.Summary{Created: 2, Skipped: 1}, nil
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var st struct {
		LastRun *string       `json:"last_run"`
		Summary *sync.Summary `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.LastRun == nil || st.Summary == nil || st.Summary.Created != 2 {
		t.Fatalf("status = %+v", st)
	}
}

func TestSyncTriggerReportsFailure(t *testing.T) {
	t.Parallel()

	s := NewServer(testConfig(), func(ctx context.Context) (sync.Summary, error) {
		return sync.Summary{Failed: 1}, errors.New("feed unreachable")
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestSyncRejectsGet(t *testing.T) {
	t.Parallel()

	s := NewServer(testConfig(), func(ctx context.Context) (sync.Summary, error) {
		return sync.Summary{}, nil
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sync")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "sync", Password: "hunter2"}

	s := NewServer(cfg, func(ctx context.Context) (sync.Summary, error) {
		return sync.Summary{}, nil
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// /health stays open for liveness probes.
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /api/status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	req.SetBasicAuth("sync", "hunter2")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated /api/status = %d", resp.StatusCode)
	}
}
