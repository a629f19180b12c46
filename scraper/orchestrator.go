package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/cfr-tools/cfrstatus/browser"
	"github.com/cfr-tools/cfrstatus/config"
	"github.com/cfr-tools/cfrstatus/models"
)

// Orchestrator drives the navigate→fill→submit→extract protocol against the
// target form. Each Run borrows one browser instance from the pool and
// guarantees it is returned (or destroyed) regardless of outcome. There are
// no retries inside a single Run; retry policy belongs to the caller.
type Orchestrator struct {
	pool   *browser.Pool
	cfg    config.ScraperConfig
	target config.TargetConfig

	// fields is the fixed variant → form-input-name table. The pairing
	// comes from the query variant, never inferred from the values.
	fields map[models.QueryKind][2]string
}

// NewOrchestrator builds the orchestrator and its variant → field table.
// It fails when a configured field pair does not name exactly two inputs.
func NewOrchestrator(pool *browser.Pool, cfg config.ScraperConfig, target config.TargetConfig) (*Orchestrator, error) {
	fields := make(map[models.QueryKind][2]string, 3)
	for kind, names := range map[models.QueryKind][]string{
		models.ByReferenceAndID:     target.ReferenceIDFields,
		models.BySerialAndReference: target.SerialReferenceFields,
		models.ByIDAndSerial:        target.IDSerialFields,
	} {
		if len(names) != 2 || names[0] == "" || names[1] == "" {
			return nil, fmt.Errorf("target config: variant %s needs exactly two form input names, got %v", kind, names)
		}
		fields[kind] = [2]string{names[0], names[1]}
	}
	return &Orchestrator{pool: pool, cfg: cfg, target: target, fields: fields}, nil
}

// FieldsFor returns the two form-input names filled for the given variant.
func (o *Orchestrator) FieldsFor(kind models.QueryKind) ([2]string, bool) {
	names, ok := o.fields[kind]
	return names, ok
}

// Run performs one lookup. Pool errors (POOL_EXHAUSTED,
// BROWSER_CREATE_FAILED) propagate unchanged; every failure between
// navigation and extraction resolves to a single SCRAPE_FAILED with the
// cause wrapped inside.
func (o *Orchestrator) Run(ctx context.Context, q *models.Query) (*models.Result, error) {
	pb, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, wedged, err := o.scrape(ctx, pb, q)

	// Cleanup always runs. A wedged instance (page could not be opened,
	// or failed to respond to its cleanup commands) goes back via
	// Destroy so the pool replaces it; otherwise the instance is reused.
	if wedged {
		o.pool.Destroy(pb)
	} else {
		o.pool.Release(pb)
	}

	if err != nil {
		slog.Warn("scrape failed",
			"kind", q.Kind,
			"instance", pb.ID(),
			"wedged", wedged,
			"elapsed", time.Since(start).Round(time.Millisecond),
			"error", err,
		)
		return nil, err
	}
	slog.Info("scrape completed",
		"kind", q.Kind,
		"instance", pb.ID(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// scrape runs the strict step sequence on the borrowed instance.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Open page              – fresh tab, stealth-injected
//  2. DEFER: cleanup         – about:blank + close (wedge detection)
//  3. Hijack mount           – block images/CSS/fonts/media (before navigation!)
//  4. Navigate + settle      – bounded by the navigation timeout
//  5. Fill variant pair      – exactly the two inputs named by the variant
//  6. Submit + await region  – bounded by the step timeout
//  7. Extract                – snapshot HTML, trimmed text of the region
//
// Step 3 must happen before step 4: resource blocking only takes effect for
// navigations that happen after the router is installed. Step 2 uses the
// ORIGINAL page reference (without request context), so cleanup still runs
// after the request deadline has expired.
func (o *Orchestrator) scrape(ctx context.Context, pb *browser.PooledBrowser, q *models.Query) (res *models.Result, wedged bool, err error) {
	// ── 1. Open page ──────────────────────────────────────────────────
	page, pageErr := pb.Instance().NewPage()
	if pageErr != nil {
		return nil, true, models.NewLookupError(
			models.ErrCodeScrapeFailed,
			"failed to open page on browser instance",
			pageErr,
		)
	}

	// ── 2. CRITICAL DEFER: blank + close the tab ─────────────────────
	defer func() {
		if blankErr := page.Navigate("about:blank"); blankErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "instance", pb.ID(), "error", blankErr)
			wedged = true
		}
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to close page", "instance", pb.ID(), "error", closeErr)
			wedged = true
		}
	}()

	// ── 3. Mount hijack router (fail open) ───────────────────────────
	router := setupHijack(page, o.cfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 3b. Browser-typical request headers (best-effort) ────────────
	extraHeaders := map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
	}
	if u, parseErr := url.Parse(o.target.URL); parseErr == nil {
		extraHeaders["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	if setErr := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(extraHeaders),
	}).Call(page); setErr != nil {
		slog.Debug("could not set extra headers", "error", setErr)
	}

	// ── 4. Navigate and wait for the form to settle ──────────────────
	navCtx, navCancel := context.WithTimeout(ctx, o.cfg.NavigationTimeout)
	defer navCancel()

	nav := page.Context(navCtx)
	if navErr := nav.Navigate(o.target.URL); navErr != nil {
		return nil, false, categorizeError(navErr, "navigation to target form failed")
	}
	// NOTE: WaitRequestIdle uses the Fetch domain which conflicts with
	// HijackRequests on Chromium 145+; DOM stability is the closest
	// network-idle signal available under the hijack router.
	if stableErr := nav.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	// ── 5. Fill exactly the two inputs named by the variant ──────────
	stepCtx, stepCancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer stepCancel()
	p := page.Context(stepCtx)

	names, ok := o.fields[q.Kind]
	if !ok {
		return nil, false, models.NewLookupError(
			models.ErrCodeScrapeFailed,
			fmt.Sprintf("no form field pair for query kind %q", q.Kind),
			nil,
		)
	}
	v1, v2 := q.Values()
	if fillErr := fillInput(p, names[0], v1); fillErr != nil {
		return nil, false, fillErr
	}
	if fillErr := fillInput(p, names[1], v2); fillErr != nil {
		return nil, false, fillErr
	}

	// ── 6. Submit and wait for the result region ─────────────────────
	submit, submitErr := p.Element(o.target.SubmitSelector)
	if submitErr != nil {
		return nil, false, categorizeError(submitErr, "submit control not found")
	}
	if clickErr := submit.Click(proto.InputMouseButtonLeft, 1); clickErr != nil {
		return nil, false, categorizeError(clickErr, "failed to submit form")
	}
	if _, waitErr := p.Element(o.target.ResultSelector); waitErr != nil {
		return nil, false, categorizeError(waitErr, "result region did not appear")
	}

	// ── 7. Snapshot the rendered markup and extract the region ───────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, false, categorizeError(htmlErr, "failed to read rendered markup")
	}
	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if parseErr != nil {
		return nil, false, models.NewLookupError(models.ErrCodeScrapeFailed, "failed to parse rendered markup", parseErr)
	}
	region := doc.Find(o.target.ResultSelector)
	if region.Length() == 0 {
		return nil, false, models.NewLookupError(models.ErrCodeScrapeFailed, "result region missing from rendered markup", nil)
	}

	return &models.Result{RawText: strings.TrimSpace(region.First().Text())}, false, nil
}

// fillInput locates the named form input and types the value into it. Any
// pre-filled text is selected first so the value replaces it.
func fillInput(p *rod.Page, name, value string) error {
	el, err := p.Element(fmt.Sprintf(`input[name=%q]`, name))
	if err != nil {
		return categorizeError(err, fmt.Sprintf("form input %q not found", name))
	}
	if selErr := el.SelectAllText(); selErr != nil {
		slog.Debug("could not select existing input text", "field", name, "error", selErr)
	}
	if inputErr := el.Input(value); inputErr != nil {
		return categorizeError(inputErr, fmt.Sprintf("failed to fill form input %q", name))
	}
	return nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps a raw browser error into a SCRAPE_FAILED with the
// cause retained, marking timeouts in the message so the API layer can map
// them to 504 via errors.Is on the wrapped cause.
func categorizeError(err error, msg string) *models.LookupError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewLookupError(models.ErrCodeScrapeFailed, msg+": timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewLookupError(models.ErrCodeScrapeFailed, msg+": canceled", err)
	default:
		return models.NewLookupError(models.ErrCodeScrapeFailed, msg, err)
	}
}
