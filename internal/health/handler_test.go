package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/eleven-am/focus-backend/internal/stream"
	"github.com/eleven-am/focus-backend/internal/vision"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeSidecar bool

func (f fakeSidecar) IsAvailable(context.Context) bool { return bool(f) }

type fakeAnalyzer struct{}

func (fakeAnalyzer) Stats() vision.Stats { return vision.Stats{FramesAnalyzed: 12, Ready: true} }

type fakeStream struct{}

func (fakeStream) Stats() stream.Stats { return stream.Stats{ActiveConnections: 3} }

func setupDeps(t *testing.T) (*gorm.DB, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return db, client, mr
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(h.Middleware())
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil, "test")
	rec := serve(h, "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	db, client, mr := setupDeps(t)

	tests := []struct {
		name      string
		sidecar   SidecarProbe
		stopRedis bool
		want      Status
		code      int
	}{
		{"all healthy", fakeSidecar(true), false, StatusHealthy, http.StatusOK},
		{"sidecar down", fakeSidecar(false), false, StatusDegraded, http.StatusOK},
		{"no sidecar", nil, false, StatusDegraded, http.StatusOK},
		{"redis down", fakeSidecar(true), true, StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.stopRedis {
				mr.Close()
			}
			h := NewHandler(db, client, tt.sidecar, fakeAnalyzer{}, fakeStream{}, "test")
			rec := serve(h, "/health/ready")
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if resp.Status != tt.want {
				t.Errorf("expected %s, got %s (%+v)", tt.want, resp.Status, resp.Components)
			}
			if resp.Stats.Analyzer.FramesAnalyzed != 12 || resp.Stats.Stream.ActiveConnections != 3 {
				t.Errorf("stats not reported: %+v", resp.Stats)
			}
			if resp.Stats.Requests.TotalRequests != 1 {
				t.Errorf("expected request counted, got %d", resp.Stats.Requests.TotalRequests)
			}
		})
	}
}

func TestReadiness_NothingConfigured(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil, "test")
	rec := serve(h, "/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestVision(t *testing.T) {
	h := NewHandler(nil, nil, nil, fakeAnalyzer{}, fakeStream{}, "test")
	rec := serve(h, "/health/vision")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp VisionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Analyzer.Ready || resp.Stream.ActiveConnections != 3 {
		t.Errorf("unexpected vision stats %+v", resp)
	}
}

func TestComputeOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentStatus
		want       Status
	}{
		{"empty", map[string]ComponentStatus{}, StatusHealthy},
		{"db unhealthy", map[string]ComponentStatus{"database": {Status: StatusUnhealthy}}, StatusUnhealthy},
		{"db degraded", map[string]ComponentStatus{"database": {Status: StatusDegraded}}, StatusDegraded},
		{"sidecar unhealthy", map[string]ComponentStatus{
			"database":       {Status: StatusHealthy},
			"vision_sidecar": {Status: StatusUnhealthy},
		}, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeOverallStatus(tt.components); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
