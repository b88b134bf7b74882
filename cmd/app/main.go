package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesim/internal/app"
	"tradesim/internal/engine"
	"tradesim/internal/infra/feed"
	"tradesim/internal/model"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background Asset Sync
	go bootstrap.SyncAssets(ctx)

	// 5. Cost Engine & Orchestrator
	params := bootstrap.InitialParameters()
	orch := engine.New(model.NewCostEngine(), params, bootstrap.Runtime)

	// Start the dispatch loop in its own goroutine (single-writer hotpath)
	go orch.Run(ctx)
	slog.InfoContext(ctx, "Orchestrator started", slog.String("asset", params.Asset))

	// 6. Order Book Feed
	cfg := bootstrap.Config
	bookFeed := feed.New(feed.Config{
		URL:         cfg.Feed.WSURL,
		BaseDelay:   time.Duration(cfg.Feed.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Feed.MaxDelayMS) * time.Millisecond,
		MaxAttempts: cfg.Feed.MaxAttempts,
	}, orch.Inbox(), bootstrap.Runtime)

	if err := bookFeed.Connect(ctx); err != nil {
		slog.Error("Failed to connect feed", slog.Any("error", err))
	}
	defer bookFeed.Disconnect()
	slog.InfoContext(ctx, "Feed started", slog.String("url", cfg.Feed.WSURL))

	slog.InfoContext(ctx, "Trade-cost simulator operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	// Persist the parameters in effect so the next run resumes with them
	if err := bootstrap.Storage.SaveLastUsed(orch.Parameters()); err != nil {
		slog.Warn("Failed to persist last-used parameters", slog.Any("error", err))
	}

	slog.Info("Shutting down gracefully...")
}
