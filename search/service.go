package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/cfr-tools/cfrstatus/cache"
	"github.com/cfr-tools/cfrstatus/models"
)

// Cache status values reported to the API layer.
const (
	StatusHit  = "hit"
	StatusMiss = "miss"
)

// Runner executes one scrape for a validated query. Satisfied by
// scraper.Orchestrator; an interface here so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, q *models.Query) (*models.Result, error)
}

// Service answers lookups from the result cache, falling back to the
// orchestrator on a miss. Concurrent identical misses are coalesced: only
// one scrape runs per cache key, and the duplicates await its result.
type Service struct {
	cache  *cache.Cache
	runner Runner
	flight singleflight.Group
}

// New creates a Service.
func New(c *cache.Cache, r Runner) *Service {
	return &Service{cache: c, runner: r}
}

// Search resolves a validated query. On a cache hit it returns immediately
// without touching the browser pool; on a miss it runs one scrape, stores
// the result, and returns it. Errors are propagated classified, never
// swallowed.
func (s *Service) Search(ctx context.Context, q *models.Query) (*models.Result, string, error) {
	key := q.CacheKey()

	if res, ok := s.cache.Get(key); ok {
		return res, StatusHit, nil
	}

	v, err, shared := s.flight.Do(key, func() (any, error) {
		// A duplicate may have filled the cache while this call waited
		// for the flight slot.
		if res, ok := s.cache.Get(key); ok {
			return res, nil
		}
		res, runErr := s.runner.Run(ctx, q)
		if runErr != nil {
			return nil, runErr
		}
		s.cache.Set(key, res)
		return res, nil
	})
	if err != nil {
		return nil, StatusMiss, err
	}
	if shared {
		slog.Debug("coalesced duplicate lookup", "kind", q.Kind)
	}
	return v.(*models.Result), StatusMiss, nil
}
