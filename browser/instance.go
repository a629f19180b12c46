package browser

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/stealth"

	"github.com/cfr-tools/cfrstatus/config"
	"github.com/cfr-tools/cfrstatus/models"
)

// Instance is one automated browser session capable of opening pages and
// reading rendered content. The pool owns instances; borrowers only ever
// hold one for the duration of a single scrape.
type Instance interface {
	// NewPage opens a fresh tab on the instance.
	NewPage() (*rod.Page, error)

	// Close tears down the session and its underlying browser process.
	Close() error
}

// chromeInstance wraps one launched Chromium process plus its CDP client.
type chromeInstance struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// Launch starts a Chromium process and connects to it. It fails with
// BROWSER_CREATE_FAILED when the process cannot be started or the CDP
// connection cannot be established.
func Launch(cfg config.BrowserConfig) (Instance, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewLookupError(
			models.ErrCodeCreateFailed,
			"failed to launch browser",
			err,
		)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, models.NewLookupError(
			models.ErrCodeCreateFailed,
			"failed to connect to browser",
			err,
		)
	}

	slog.Debug("browser instance launched", "controlURL", controlURL)
	return &chromeInstance{launcher: l, browser: b}, nil
}

// NewPage opens a stealth-injected tab (navigator.webdriver masking etc.
// takes effect before any navigation on the page).
func (c *chromeInstance) NewPage() (*rod.Page, error) {
	return stealth.Page(c.browser)
}

// Close disconnects from the browser and kills its process. The launcher
// kill runs even when the CDP close fails, so a wedged Chrome cannot
// outlive its pool slot.
func (c *chromeInstance) Close() error {
	err := c.browser.Close()
	c.launcher.Kill()
	return err
}
