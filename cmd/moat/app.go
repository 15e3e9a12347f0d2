package main

import (
	"fmt"
	"log"
	"time"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/deliver"
	"github.com/srinivasgumdelli/moat/internal/ingest"
	"github.com/srinivasgumdelli/moat/internal/llm"
	"github.com/srinivasgumdelli/moat/internal/pipeline"
	"github.com/srinivasgumdelli/moat/internal/process"
	"github.com/srinivasgumdelli/moat/internal/store"
	"github.com/srinivasgumdelli/moat/internal/telemetry"
)

const scraperUserAgent = "moat/1.0 (+https://github.com/srinivasgumdelli/moat)"

// app holds everything a command needs after wiring, plus the handles that
// have to be closed on the way out.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *store.Store
	cache    *process.EmbeddingCache
	pipeline *pipeline.Pipeline
	metrics  *telemetry.Metrics
}

func (a *app) Close() {
	_ = a.cache.Close()
	if a.store != nil {
		_ = a.store.DB.Close()
	}
}

func buildSources(cfg *config.Config, logger *log.Logger) []ingest.Source {
	scraper := ingest.NewScraper(20*time.Second, scraperUserAgent, logger)

	var sources []ingest.Source
	if cfg.Sources.HackerNews.Enabled {
		sources = append(sources, ingest.NewHackerNewsSource(cfg.Sources.HackerNews, scraper, logger))
	}
	if cfg.Sources.RSS.Enabled {
		sources = append(sources, ingest.NewRSSSource(cfg.Sources.RSS, scraper, logger))
	}
	if cfg.Sources.GDELT.Enabled {
		sources = append(sources, ingest.NewGDELTSource(cfg.Sources.GDELT, scraper, logger))
	}
	return sources
}

func buildChannels(cfg *config.Config, logger *log.Logger) []deliver.Channel {
	var channels []deliver.Channel
	if cfg.Deliver.Telegram.Enabled {
		channels = append(channels, deliver.NewTelegram(cfg.Deliver.Telegram, logger))
	}
	return channels
}

func buildApp(cfgPath string, withMetrics bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	client, embedder, err := llm.NewClient(cfg.LLM)
	if err != nil {
		_ = st.DB.Close()
		return nil, err
	}

	cache := process.NewEmbeddingCache(cfg.Process.Embeddings.Cache, logger)

	var metrics *telemetry.Metrics
	if withMetrics {
		metrics = telemetry.NewMetrics()
	}

	p := pipeline.New(cfg, st, client, embedder, cache,
		buildSources(cfg, logger), buildChannels(cfg, logger), metrics, logger)

	return &app{cfg: cfg, logger: logger, store: st, cache: cache, pipeline: p, metrics: metrics}, nil
}
