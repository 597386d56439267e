package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/classroom-backend/internal/http/handlers"
	httpMW "github.com/yungbote/classroom-backend/internal/http/middleware"
	"github.com/yungbote/classroom-backend/internal/observability"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/realtime"
)

func TestRouterWiresAmbientRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.New(observability.Config{Enabled: true})
	r := NewRouter(RouterConfig{
		Log:             logger.Nop(),
		Metrics:         m,
		HealthHandler:   httpH.NewHealthHandler(nil),
		RealtimeHandler: httpH.NewRealtimeHandler(logger.Nop(), realtime.NewSSEHub(logger.Nop())),
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck: want=200 got=%d", rec.Code)
	}
	if rec.Header().Get(httpMW.HeaderRequestID) == "" {
		t.Fatalf("request id header missing")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `route="/healthcheck"`) {
		t.Fatalf("metrics: got=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sse/stream", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("sse without channel: want=400 got=%d", rec.Code)
	}
}

func TestRouterSkipsUnconfiguredHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{})
	for _, path := range []string{"/metrics", "/api/jobs/x"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: want=404 got=%d", path, rec.Code)
		}
	}
}
