package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cfr-tools/cfrstatus/models"
	"github.com/cfr-tools/cfrstatus/search"
)

// Search returns a handler for POST /api/v1/search.
//
// Orchestration flow:
//  1. Parse the request and infer the query variant (INVALID_INPUT on any
//     shape problem).
//  2. Service.Search — cache hit returns immediately, miss drives the
//     browser pool.
//  3. Fill timing and cache status, return 200, or map the classified
//     error to a status code.
func Search(svc *search.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse and validate ───────────────────────────────────
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.SearchResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
				Timing: models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()},
			})
			return
		}
		q, err := req.Query()
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		// ── 2. Lookup ───────────────────────────────────────────────
		scrapeStart := time.Now()
		result, cacheStatus, err := svc.Search(c.Request.Context(), q)
		scrapeMs := time.Since(scrapeStart).Milliseconds()
		if cacheStatus == search.StatusHit {
			scrapeMs = 0
		}

		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				ScrapeMs: scrapeMs,
			})
			return
		}

		// ── 3. Respond ──────────────────────────────────────────────
		c.JSON(http.StatusOK, models.SearchResponse{
			Success:     true,
			Result:      result,
			CacheStatus: cacheStatus,
			Timing: models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				ScrapeMs: scrapeMs,
			},
		})
	}
}

// respondError maps a LookupError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	lookupErr, ok := err.(*models.LookupError)
	if !ok {
		lookupErr = models.NewLookupError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(lookupErr), models.SearchResponse{
		Success: false,
		Error:   lookupErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes. A
// SCRAPE_FAILED caused by a deadline is surfaced as a gateway timeout.
func mapErrorToStatus(e *models.LookupError) int {
	switch e.Code {
	case models.ErrCodePoolExhausted:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeCreateFailed:
		return http.StatusInternalServerError // 500
	case models.ErrCodeScrapeFailed:
		if errors.Is(e, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout // 504
		}
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}
