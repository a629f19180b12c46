package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	tls2 "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/cfr-tools/cfrstatus/config"
	"github.com/cfr-tools/cfrstatus/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Probe checks the target form out-of-band: it fetches the page over plain
// HTTP with a Chrome TLS fingerprint and verifies that the six configured
// input names are still present in the served markup. The health endpoint
// uses it to tell "pool degraded" apart from "target changed its DOM
// contract". A probe never consumes a pool slot.
type Probe struct {
	target config.TargetConfig
}

// NewProbe creates a probe for the configured target.
func NewProbe(target config.TargetConfig) *Probe {
	return &Probe{target: target}
}

// Check fetches the target form and reports reachability plus any
// configured input names missing from the markup.
func (pr *Probe) Check(ctx context.Context) *models.TargetStatus {
	body, err := pr.fetch(ctx)
	if err != nil {
		return &models.TargetStatus{Reachable: false, Error: err.Error()}
	}

	present, hasSubmit := formControls(body)
	var missing []string
	for _, pair := range [][]string{
		pr.target.ReferenceIDFields,
		pr.target.SerialReferenceFields,
		pr.target.IDSerialFields,
	} {
		for _, name := range pair {
			if _, ok := present[name]; !ok {
				missing = append(missing, name)
			}
		}
	}
	return &models.TargetStatus{Reachable: true, MissingFields: missing, SubmitPresent: hasSubmit}
}

// fetch retrieves the target URL with a Chrome TLS fingerprint (utls), so
// the probe sees the same markup the browser instances do even when the
// target fronts its form with TLS-fingerprint bot filtering.
func (pr *Probe) fetch(ctx context.Context) ([]byte, error) {
	transport := &http.Transport{
		DialTLSContext: dialTLSChrome,
	}
	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pr.target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("probe: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("probe: HTTP %d from target", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024)) // 2 MB cap
	if err != nil {
		return nil, fmt.Errorf("probe: read body: %w", err)
	}
	return body, nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// formControls tokenizes raw HTML, collecting the name attribute of every
// <input> element and whether a submit control exists: an input with
// type="submit", or a <button> whose type is not "button"/"reset" (buttons
// default to submit).
func formControls(body []byte) (map[string]struct{}, bool) {
	names := make(map[string]struct{})
	hasSubmit := false
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return names, hasSubmit
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tn, hasAttr := tokenizer.TagName()
		tag := string(tn)
		if tag != "input" && tag != "button" {
			continue
		}

		var name, typ string
		for hasAttr {
			key, val, more := tokenizer.TagAttr()
			switch string(key) {
			case "name":
				name = string(val)
			case "type":
				typ = string(val)
			}
			if !more {
				break
			}
		}

		if tag == "input" {
			if name != "" {
				names[name] = struct{}{}
			}
			if typ == "submit" {
				hasSubmit = true
			}
			continue
		}
		if typ != "button" && typ != "reset" {
			hasSubmit = true
		}
	}
}
