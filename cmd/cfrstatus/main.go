package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cfr-tools/cfrstatus/api"
	"github.com/cfr-tools/cfrstatus/browser"
	"github.com/cfr-tools/cfrstatus/cache"
	"github.com/cfr-tools/cfrstatus/config"
	"github.com/cfr-tools/cfrstatus/scraper"
	"github.com/cfr-tools/cfrstatus/search"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if cfg.Target.URL == "" {
		fmt.Fprintln(os.Stderr, "CFR_TARGET_URL must be set")
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("cfrstatus starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"target", cfg.Target.URL,
		"minInstances", cfg.Browser.MinInstances,
		"maxInstances", cfg.Browser.MaxInstances,
	)

	// ── 3. Warm up the browser pool ─────────────────────────────────
	pool := browser.NewPool(cfg.Browser, func() (browser.Instance, error) {
		return browser.Launch(cfg.Browser)
	})
	defer pool.Close()

	// ── 4. Orchestrator, cache, search service ──────────────────────
	orch, err := scraper.NewOrchestrator(pool, cfg.Scraper, cfg.Target)
	if err != nil {
		slog.Error("failed to initialise orchestrator", "error", err)
		os.Exit(1)
	}
	cc := cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	svc := search.New(cc, orch)
	probe := scraper.NewProbe(cfg.Target)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(svc, pool, probe, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight lookups 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// pool.Close() runs via defer — kills every Chrome instance.
	slog.Info("cfrstatus stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
