package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vendorquery-backend/internal/services/health"
	"vendorquery-backend/internal/shared/config"
	"vendorquery-backend/internal/shared/metrics"
	"vendorquery-backend/internal/shared/server/middleware"
	"vendorquery-backend/internal/shared/server/respond"
)

// RouteRegistrar attaches a component's routes to the API group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps holds the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config  config.Config
	Health  *health.Service
	Batches RouteRegistrar
	Results RouteRegistrar
	Blobs   RouteRegistrar
}

// Rate limits per client and route group.
var defaultRateRules = map[string]middleware.RateLimitRule{
	middleware.GroupSubmit:  {Rate: 0.5, Burst: 5},
	middleware.GroupPolling: {Rate: 10, Burst: 50},
	middleware.GroupDefault: {Rate: 5, Burst: 30},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		payload, ok := deps.Health.Status(c.Request.Context())
		if !ok {
			respond.JSON(c, http.StatusServiceUnavailable, payload)
			return
		}
		respond.OK(c, payload)
	})

	// Blob endpoints are called by remote services with signed URLs and are not rate limited.
	if deps.Blobs != nil {
		deps.Blobs.RegisterRoutes(api)
	}

	limited := api.Group("")
	if deps.Config.RateLimit {
		limited.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    defaultRateRules,
			GroupFor: middleware.BatchRouteGroup,
		}))
	}
	for _, h := range []RouteRegistrar{deps.Batches, deps.Results} {
		if h != nil {
			h.RegisterRoutes(limited)
		}
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
