package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MacJediWizard/aurospan/internal/health"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type mockDatabaseHealthChecker struct {
	pingErr error
	health  map[string]any
}

func (m *mockDatabaseHealthChecker) Ping(_ context.Context) error {
	return m.pingErr
}

func (m *mockDatabaseHealthChecker) Health() map[string]any {
	if m.health != nil {
		return m.health
	}
	return map[string]any{}
}

type mockVolumeCollector struct {
	volumes []health.VolumeUsage
	err     error
}

func (m *mockVolumeCollector) Collect(_ context.Context) ([]health.VolumeUsage, error) {
	return m.volumes, m.err
}

type mockShutdownStatus struct {
	accepting bool
}

func (m *mockShutdownStatus) IsAcceptingRequests() bool {
	return m.accepting
}

func setupHealthTestRouter(db DatabaseHealthChecker, volumes VolumeCollector, shutdown ShutdownStatusProvider) *gin.Engine {
	r := gin.New()
	handler := NewHealthHandler(db, volumes, zerolog.Nop())
	if shutdown != nil {
		handler.SetShutdownStatus(shutdown)
	}
	handler.RegisterPublicRoutes(r)
	return r
}

func getReady(t *testing.T, r *gin.Engine) (int, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health/ready", nil)
	r.ServeHTTP(w, req)

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	return w.Code, resp
}

func TestHealthLive(t *testing.T) {
	r := setupHealthTestRouter(&mockDatabaseHealthChecker{pingErr: errors.New("down")}, nil, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != `{"status":"ok"}` {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestHealthReady(t *testing.T) {
	healthyVolumes := &mockVolumeCollector{volumes: []health.VolumeUsage{{Path: "/data", UsedPercent: 40}}}

	t.Run("all healthy", func(t *testing.T) {
		db := &mockDatabaseHealthChecker{health: map[string]any{"open_connections": 1}}
		code, resp := getReady(t, setupHealthTestRouter(db, healthyVolumes, nil))

		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if resp.Status != HealthStatusHealthy {
			t.Fatalf("expected healthy status, got %q", resp.Status)
		}
		if resp.Checks["database"] == nil || resp.Checks["storage"] == nil {
			t.Fatalf("expected database and storage checks, got %v", resp.Checks)
		}
	})

	t.Run("database unhealthy", func(t *testing.T) {
		db := &mockDatabaseHealthChecker{pingErr: errors.New("database is locked")}
		code, resp := getReady(t, setupHealthTestRouter(db, healthyVolumes, nil))

		if code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", code)
		}
		if resp.Checks["database"].Error != "database ping failed" {
			t.Errorf("unexpected error %q", resp.Checks["database"].Error)
		}
	})

	t.Run("nil database", func(t *testing.T) {
		code, _ := getReady(t, setupHealthTestRouter(nil, nil, nil))
		if code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", code)
		}
	})

	t.Run("storage warning stays ready", func(t *testing.T) {
		volumes := &mockVolumeCollector{volumes: []health.VolumeUsage{{Path: "/data", UsedPercent: 85}}}
		code, resp := getReady(t, setupHealthTestRouter(&mockDatabaseHealthChecker{}, volumes, nil))

		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if resp.Checks["storage"].Details["status"] != string(health.StatusWarning) {
			t.Errorf("expected warning details, got %v", resp.Checks["storage"].Details)
		}
	})

	t.Run("storage critical", func(t *testing.T) {
		volumes := &mockVolumeCollector{volumes: []health.VolumeUsage{{Path: "/data", UsedPercent: 97}}}
		code, resp := getReady(t, setupHealthTestRouter(&mockDatabaseHealthChecker{}, volumes, nil))

		if code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", code)
		}
		if resp.Checks["storage"].Status != HealthStatusUnhealthy {
			t.Errorf("expected unhealthy storage, got %q", resp.Checks["storage"].Status)
		}
	})

	t.Run("storage unreadable", func(t *testing.T) {
		volumes := &mockVolumeCollector{err: errors.New("statfs failed")}
		code, _ := getReady(t, setupHealthTestRouter(&mockDatabaseHealthChecker{}, volumes, nil))
		if code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", code)
		}
	})

	t.Run("shutting down", func(t *testing.T) {
		code, resp := getReady(t, setupHealthTestRouter(&mockDatabaseHealthChecker{}, healthyVolumes, &mockShutdownStatus{accepting: false}))

		if code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", code)
		}
		if resp.Error != "server is shutting down" {
			t.Errorf("unexpected error %q", resp.Error)
		}
	})

	t.Run("running with shutdown provider", func(t *testing.T) {
		code, _ := getReady(t, setupHealthTestRouter(&mockDatabaseHealthChecker{}, healthyVolumes, &mockShutdownStatus{accepting: true}))
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
	})
}
