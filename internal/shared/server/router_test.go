package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"vendorquery-backend/internal/shared/config"
)

type stubRoutes struct {
	path string
}

func (s stubRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(s.path, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
}

func TestRouterMountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterDeps{
		Config:  config.Config{Env: "dev", RateLimit: true},
		Batches: stubRoutes{path: "/batches/:batchId"},
		Results: stubRoutes{path: "/jobs/:jobId/queries"},
	})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "health", path: "/api/v1/health", wantStatus: http.StatusOK},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK},
		{name: "batches", path: "/api/v1/batches/b1", wantStatus: http.StatusOK},
		{name: "results", path: "/api/v1/jobs/j1/queries", wantStatus: http.StatusOK},
		{name: "blobs not mounted", path: "/api/v1/blobs/x", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "jobs_created_total") {
		t.Fatalf("expected job counters in metrics output")
	}
}

func TestAddr(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"} {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
