package models

// SearchResponse is the response for POST /api/v1/search.
type SearchResponse struct {
	// Success indicates whether the lookup completed without errors.
	Success bool `json:"success"`

	// Result carries the extracted record text. Nil when Success is false.
	Result *Result `json:"result,omitempty"`

	// CacheStatus indicates whether the result was served from cache.
	// Values: "hit" or "miss".
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving one lookup.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ScrapeMs is the time spent driving the browser. Zero on a cache hit.
	ScrapeMs int64 `json:"scrape_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string        `json:"status"` // "healthy" or "degraded"
	Uptime    string        `json:"uptime"`
	PoolStats PoolStats     `json:"pool_stats"`
	Target    *TargetStatus `json:"target,omitempty"`
	Version   string        `json:"version"`
}

// PoolStats reports the state of the browser instance pool.
type PoolStats struct {
	MaxInstances    int `json:"max_instances"`
	TotalInstances  int `json:"total_instances"`
	ActiveInstances int `json:"active_instances"`
}

// TargetStatus reports the last probe of the upstream form's DOM contract.
type TargetStatus struct {
	// Reachable is true when the target URL answered the probe.
	Reachable bool `json:"reachable"`

	// MissingFields lists configured form inputs the probe could not find
	// in the served markup. Non-empty means the DOM contract has drifted.
	MissingFields []string `json:"missing_fields,omitempty"`

	// SubmitPresent is true when the served markup still carries a
	// submit control for the form.
	SubmitPresent bool `json:"submit_present"`

	// Error describes the probe failure when Reachable is false.
	Error string `json:"error,omitempty"`
}
