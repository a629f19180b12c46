package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cfr-tools/cfrstatus/api/handler"
	"github.com/cfr-tools/cfrstatus/api/middleware"
	"github.com/cfr-tools/cfrstatus/browser"
	"github.com/cfr-tools/cfrstatus/config"
	"github.com/cfr-tools/cfrstatus/scraper"
	"github.com/cfr-tools/cfrstatus/search"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Search:  RateLimit
//
// Health endpoint is intentionally outside the rate limit so monitoring
// probes always work.
func NewRouter(svc *search.Service, pool *browser.Pool, probe *scraper.Probe, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — not rate limited.
	v1.GET("/health", handler.Health(pool, probe, startTime))

	// Search — admission-controlled before the pool is ever touched.
	limited := v1.Group("")
	limited.Use(middleware.RateLimit(cfg.RateLimit))
	limited.POST("/search", handler.Search(svc))

	return r
}
