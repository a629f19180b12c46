package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cfr-tools/cfrstatus/browser"
	"github.com/cfr-tools/cfrstatus/models"
	"github.com/cfr-tools/cfrstatus/scraper"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports pool utilisation and degrades status when > 80% of instances are
// active. With ?probe=true it also checks the target form's DOM contract
// out-of-band (never consuming a pool slot).
func Health(pool *browser.Pool, probe *scraper.Probe, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := pool.Stats()

		status := "healthy"
		if stats.MaxInstances > 0 && stats.ActiveInstances > int(float64(stats.MaxInstances)*0.8) {
			status = "degraded"
		}

		var target *models.TargetStatus
		if probe != nil && c.Query("probe") == "true" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			target = probe.Check(ctx)
			cancel()
			if !target.Reachable || len(target.MissingFields) > 0 || !target.SubmitPresent {
				status = "degraded"
			}
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Target:    target,
			Version:   "0.1.0",
		})
	}
}
