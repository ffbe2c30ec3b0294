// feed-loader runs a one-shot ingestion for every feed defined in a YAML
// file and prints each result as JSON. Useful for trying out feed
// definitions before registering them with the daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"feedguard/internal/feed"
	"feedguard/internal/ingest"
	"feedguard/internal/store"
)

type loaderConfig struct {
	Feeds []feed.Feed `yaml:"feeds"`
}

func main() {
	configPath := flag.String("config", "feeds.yaml", "Path to feed definitions file")
	fetchTimeout := flag.Duration("timeout", 30*time.Second, "Fetch timeout per feed")
	flag.Parse()

	raw, err := os.ReadFile(*configPath)
	if err != nil {
		slog.Error("read config failed", "path", *configPath, "err", err)
		os.Exit(1)
	}
	var cfg loaderConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Error("parse config failed", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if len(cfg.Feeds) == 0 {
		slog.Error("no feeds defined", "path", *configPath)
		os.Exit(1)
	}

	registry := feed.NewRegistry()
	results := feed.NewResultLog(feed.DefaultResultRetention)
	engine := ingest.NewEngine(registry, store.NewMemoryStore(), results, *fetchTimeout)

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false

	for _, def := range cfg.Feeds {
		created, err := registry.Create(def)
		if err != nil {
			slog.Error("invalid feed definition", "feed", def.Name, "err", err)
			failed = true
			continue
		}
		result, err := engine.Ingest(ctx, created.ID)
		if err != nil {
			slog.Error("ingest failed", "feed", created.Name, "err", err)
			failed = true
			continue
		}
		if !result.Success {
			failed = true
		}
		enc.Encode(result)
	}

	if failed {
		os.Exit(1)
	}
}
