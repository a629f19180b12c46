package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cfr-tools/cfrstatus/cache"
	"github.com/cfr-tools/cfrstatus/models"
	"github.com/cfr-tools/cfrstatus/search"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	result *models.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, q *models.Query) (*models.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRouter(runner search.Runner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := search.New(cache.New(time.Hour, 100), runner)
	r := gin.New()
	r.POST("/api/v1/search", Search(svc))
	return r
}

func doSearch(t *testing.T, r *gin.Engine, body string) (*httptest.ResponseRecorder, models.SearchResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp models.SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	return w, resp
}

func TestSearch_SuccessThenCacheHit(t *testing.T) {
	runner := &fakeRunner{result: &models.Result{RawText: "Licence active, expires 2027-03-01"}}
	r := newTestRouter(runner)
	body := `{"reference":"REF123456","id_number":"8001015009087"}`

	w, resp := doSearch(t, r, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !resp.Success {
		t.Fatal("success = false on a completed lookup")
	}
	if resp.Result == nil || resp.Result.RawText != "Licence active, expires 2027-03-01" {
		t.Errorf("result = %+v", resp.Result)
	}
	if resp.CacheStatus != search.StatusMiss {
		t.Errorf("cache status = %s, want %s", resp.CacheStatus, search.StatusMiss)
	}

	// Identical request within the TTL is served from cache.
	w, resp = doSearch(t, r, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp.CacheStatus != search.StatusHit {
		t.Errorf("cache status = %s, want %s", resp.CacheStatus, search.StatusHit)
	}
	if runner.callCount() != 1 {
		t.Errorf("runner invoked %d times, want 1", runner.callCount())
	}
}

func TestSearch_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"reference":`},
		{"all three fields", `{"reference":"R","id_number":"I","serial":"S"}`},
		{"single field", `{"serial":"S"}`},
		{"empty body", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeRunner{result: &models.Result{RawText: "x"}})
			w, resp := doSearch(t, r, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if resp.Success {
				t.Error("success = true on rejected input")
			}
			if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
				t.Errorf("error = %+v, want code %s", resp.Error, models.ErrCodeInvalidInput)
			}
		})
	}
}

func TestSearch_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			"pool exhausted",
			models.NewLookupError(models.ErrCodePoolExhausted, "no browser instance became available within 10s", nil),
			http.StatusServiceUnavailable,
			models.ErrCodePoolExhausted,
		},
		{
			"create failed",
			models.NewLookupError(models.ErrCodeCreateFailed, "failed to launch browser", nil),
			http.StatusInternalServerError,
			models.ErrCodeCreateFailed,
		},
		{
			"scrape timeout",
			models.NewLookupError(models.ErrCodeScrapeFailed, "navigation to target form failed: timed out", context.DeadlineExceeded),
			http.StatusGatewayTimeout,
			models.ErrCodeScrapeFailed,
		},
		{
			"scrape failure",
			models.NewLookupError(models.ErrCodeScrapeFailed, "result region did not appear", nil),
			http.StatusBadGateway,
			models.ErrCodeScrapeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeRunner{err: tt.err})
			w, resp := doSearch(t, r, `{"id_number":"8001015009087","serial":"SN-0042"}`)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if resp.Success {
				t.Error("success = true on a failed lookup")
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}
