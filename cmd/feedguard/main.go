package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedguard/internal/feed"
	"feedguard/internal/ingest"
	"feedguard/internal/server"
	"feedguard/internal/store"
)

func main() {
	cfg := server.LoadConfig()

	var st store.IndicatorStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		st = pg
		slog.Info("using postgres indicator store")
	} else {
		st = store.NewMemoryStore()
		slog.Info("using in-memory indicator store")
	}

	registry := feed.NewRegistry()
	results := feed.NewResultLog(feed.DefaultResultRetention)
	engine := ingest.NewEngine(registry, st, results, cfg.FetchTimeout)
	scheduler := ingest.NewScheduler(registry, engine, cfg.PollInterval)
	srv := server.New(registry, st, engine, results, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go scheduler.Run(ctx)
	srv.StartMetrics(cfg.MetricsAddr)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Router()}
	go func() {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
}
