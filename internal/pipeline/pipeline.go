package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/analyze"
	"github.com/srinivasgumdelli/moat/internal/deliver"
	"github.com/srinivasgumdelli/moat/internal/ingest"
	"github.com/srinivasgumdelli/moat/internal/ledger"
	"github.com/srinivasgumdelli/moat/internal/llm"
	"github.com/srinivasgumdelli/moat/internal/models"
	"github.com/srinivasgumdelli/moat/internal/process"
	"github.com/srinivasgumdelli/moat/internal/retry"
	"github.com/srinivasgumdelli/moat/internal/synthesize"
	"github.com/srinivasgumdelli/moat/internal/telemetry"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	CreateRun(ctx context.Context, run *models.PipelineRun) (int64, error)
	FinalizeRun(ctx context.Context, run *models.PipelineRun) error
	InsertArticle(ctx context.Context, a *models.Article, runID int64) (int64, error)
	InsertCluster(ctx context.Context, c *models.Cluster) (int64, error)
	UpdateClusterLabel(ctx context.Context, clusterID int64, label string) error
	UpdateArticleCluster(ctx context.Context, articleID, clusterID int64) error
	InsertSummary(ctx context.Context, sum *models.Summary) (int64, error)
	InsertCrossReference(ctx context.Context, x *models.CrossReference, runID int64) error
	InsertProjection(ctx context.Context, p *models.Projection, runID int64) error
	analyze.TrendStore
}

// Pipeline wires ingestion, processing, synthesis, analysis, and delivery
// into one run.
type Pipeline struct {
	cfg      *config.Config
	store    Store
	client   llm.Client
	embedder process.Embedder
	cache    *process.EmbeddingCache
	sources  []ingest.Source
	channels []deliver.Channel
	metrics  *telemetry.Metrics
	logger   *log.Logger

	deduper   *process.Deduper
	clusterer *process.Clusterer
	retryOpts retry.Options
}

func New(cfg *config.Config, st Store, client llm.Client, embedder process.Embedder, cache *process.EmbeddingCache, sources []ingest.Source, channels []deliver.Channel, metrics *telemetry.Metrics, logger *log.Logger) *Pipeline {
	retryOpts := retry.DefaultOptions()
	if cfg.LLM.MaxRetries > 0 {
		retryOpts.MaxRetries = cfg.LLM.MaxRetries
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		client:    client,
		embedder:  embedder,
		cache:     cache,
		sources:   sources,
		channels:  channels,
		metrics:   metrics,
		logger:    logger,
		deduper:   process.NewDeduper(cfg.Process.Dedup.CosineThreshold, embedder, cache, logger),
		clusterer: process.NewClusterer(cfg.Process.Cluster.DistanceThreshold, embedder, cache, logger),
		retryOpts: retryOpts,
	}
}

// Run executes one full pipeline pass. The run row is finalized exactly once
// on every exit path; a failure inside any stage after ingestion marks the
// run failed.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	led := ledger.New(p.pricing(), ledger.DefaultPricing)
	now := time.Now().UTC()
	run := &models.PipelineRun{
		UID:       uuid.NewString(),
		StartedAt: now,
		Status:    models.RunStatusRunning,
	}
	if _, cerr := p.store.CreateRun(ctx, run); cerr != nil {
		return fmt.Errorf("create run: %w", cerr)
	}
	if p.logger != nil {
		p.logger.Printf("run %s (#%d) started", run.UID, run.ID)
	}

	defer func() {
		totals := led.Snapshot()
		run.TokensUsed = totals.Tokens()
		run.CostUSD = totals.CostUSD
		finished := time.Now().UTC()
		run.FinishedAt = &finished
		if err != nil {
			run.Status = models.RunStatusFailed
		} else {
			run.Status = models.RunStatusCompleted
		}
		if p.metrics != nil {
			p.metrics.RunsTotal.WithLabelValues(run.Status).Inc()
			p.metrics.TokensUsed.Add(float64(run.TokensUsed))
			p.metrics.CostUSD.Add(run.CostUSD)
		}
		if ferr := p.store.FinalizeRun(context.WithoutCancel(ctx), run); ferr != nil && p.logger != nil {
			p.logger.Printf("finalize run %d: %v", run.ID, ferr)
		}
		if p.logger != nil {
			p.logger.Printf("run %s (#%d) %s: %d articles, %d clusters, %d tokens, $%.4f",
				run.UID, run.ID, run.Status, run.ArticlesFetched, run.ClustersFormed, run.TokensUsed, run.CostUSD)
		}
	}()

	// Ingest across sources and topics in parallel. A failing source is
	// logged and skipped.
	articles := p.fetchAll(ctx)
	run.ArticlesFetched = int64(len(articles))
	if p.metrics != nil {
		p.metrics.ArticlesInRun.Observe(float64(len(articles)))
	}
	if len(articles) == 0 {
		if p.logger != nil {
			p.logger.Printf("no articles fetched, nothing to do")
		}
		return nil
	}

	articles = p.filterArticles(articles)

	for _, a := range articles {
		if _, err := p.store.InsertArticle(ctx, a, run.ID); err != nil {
			return fmt.Errorf("store article %q: %w", a.URL, err)
		}
	}

	stageStart := time.Now()
	deduped := articles
	if p.cfg.Process.Dedup.Enabled {
		deduped, err = p.deduper.Dedup(ctx, articles)
		if err != nil {
			return fmt.Errorf("dedup: %w", err)
		}
	}
	run.ArticlesAfterDedup = int64(len(deduped))
	p.observeStage("dedup", stageStart)

	stageStart = time.Now()
	clusters, err := p.clusterAll(ctx, deduped, run.ID)
	if err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	run.ClustersFormed = int64(len(clusters))
	p.observeStage("cluster", stageStart)

	for _, c := range clusters {
		if _, err := p.store.InsertCluster(ctx, c); err != nil {
			return fmt.Errorf("store cluster: %w", err)
		}
		for _, a := range c.Articles {
			if a.ID == 0 {
				continue
			}
			if err := p.store.UpdateArticleCluster(ctx, a.ID, c.ID); err != nil {
				return fmt.Errorf("link article %d: %w", a.ID, err)
			}
		}
	}

	stageStart = time.Now()
	model := p.modelFor("summarize")
	summarizer := synthesize.NewSummarizer(p.client, led, model, p.cfg.Synthesize, p.retryOpts, p.logger)
	summaries := summarizer.Summarize(ctx, clusters)
	p.observeStage("summarize", stageStart)

	for _, s := range summaries {
		if _, err := p.store.InsertSummary(ctx, s); err != nil {
			return fmt.Errorf("store summary: %w", err)
		}
	}
	for _, c := range clusters {
		if err := p.store.UpdateClusterLabel(ctx, c.ID, c.Label); err != nil {
			return fmt.Errorf("store cluster label: %w", err)
		}
	}

	var (
		crossRefs   []*models.CrossReference
		projections []*models.Projection
		trends      []*models.Trend
	)
	if len(summaries) > 0 {
		stageStart = time.Now()
		crossRefs, projections, trends = p.analyzeAll(ctx, led, run.ID, clusters, summaries)
		p.observeStage("analyze", stageStart)
	}

	var digest string
	if len(summaries) > 0 {
		digest = synthesize.FormatDigest(synthesize.Digest{
			Topics:      p.cfg.Topics,
			Clusters:    clusters,
			Summaries:   summaries,
			CrossRefs:   crossRefs,
			Projections: projections,
			Trends:      trends,
			Run:         run,
		})
	} else {
		if p.logger != nil {
			p.logger.Printf("all summarization failed, using fallback digest")
		}
		digest = synthesize.FormatFallbackDigest(p.cfg.Topics, deduped, run)
	}

	p.deliverAll(ctx, digest)
	return nil
}

func (p *Pipeline) fetchAll(ctx context.Context) []*models.Article {
	var (
		mu       sync.Mutex
		articles []*models.Article
		wg       sync.WaitGroup
	)
	for _, src := range p.sources {
		for _, topic := range p.cfg.Topics {
			wg.Add(1)
			go func(src ingest.Source, topic string) {
				defer wg.Done()
				batch, err := src.Fetch(ctx, topic)
				if err != nil {
					if p.logger != nil {
						p.logger.Printf("source %q failed for topic %q: %v", src.Name(), topic, err)
					}
					return
				}
				mu.Lock()
				articles = append(articles, batch...)
				mu.Unlock()
			}(src, topic)
		}
	}
	wg.Wait()
	if p.logger != nil {
		p.logger.Printf("ingested %d articles from %d sources", len(articles), len(p.sources))
	}
	return articles
}

// filterArticles drops stale articles and caps the per-topic count.
func (p *Pipeline) filterArticles(articles []*models.Article) []*models.Article {
	maxAge := time.Duration(p.cfg.General.MaxArticleAgeHours) * time.Hour
	maxPerTopic := p.cfg.General.MaxArticlesPerTopic
	now := time.Now().UTC()

	counts := make(map[string]int)
	kept := make([]*models.Article, 0, len(articles))
	for _, a := range articles {
		if maxAge > 0 && a.PublishedAt != nil && now.Sub(*a.PublishedAt) > maxAge {
			continue
		}
		if maxPerTopic > 0 && counts[a.Topic] >= maxPerTopic {
			continue
		}
		counts[a.Topic]++
		kept = append(kept, a)
	}
	if p.logger != nil && len(kept) != len(articles) {
		p.logger.Printf("filtered %d -> %d articles (age/cap)", len(articles), len(kept))
	}
	return kept
}

// clusterAll clusters each topic independently so stories never merge across
// topics.
func (p *Pipeline) clusterAll(ctx context.Context, articles []*models.Article, runID int64) ([]*models.Cluster, error) {
	byTopic := make(map[string][]*models.Article)
	for _, a := range articles {
		byTopic[a.Topic] = append(byTopic[a.Topic], a)
	}

	var clusters []*models.Cluster
	for _, topic := range p.cfg.Topics {
		topicArticles := byTopic[topic]
		if len(topicArticles) == 0 {
			continue
		}
		if !p.cfg.Process.Cluster.Enabled {
			for _, a := range topicArticles {
				clusters = append(clusters, &models.Cluster{
					Topic: topic, Label: a.Title, ArticleCount: 1,
					RunID: runID, Articles: []*models.Article{a},
				})
			}
			continue
		}
		topicClusters, err := p.clusterer.Cluster(ctx, topicArticles, topic, runID)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, topicClusters...)
	}
	return clusters, nil
}

// analyzeAll runs the enabled analyzers concurrently. Each failure is logged
// and leaves that analyzer's output empty.
func (p *Pipeline) analyzeAll(ctx context.Context, led *ledger.Ledger, runID int64, clusters []*models.Cluster, summaries []*models.Summary) ([]*models.CrossReference, []*models.Projection, []*models.Trend) {
	var (
		wg          sync.WaitGroup
		crossRefs   []*models.CrossReference
		projections []*models.Projection
		trends      []*models.Trend
	)

	if p.cfg.Analyze.CrossRef.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := analyze.NewCrossRefAnalyzer(p.client, led, p.modelFor("crossref"), p.retryOpts, p.logger)
			out, err := a.Analyze(ctx, clusters, summaries)
			if err != nil {
				if p.logger != nil {
					p.logger.Printf("crossref analyzer failed: %v", err)
				}
				return
			}
			crossRefs = out
		}()
	}
	if p.cfg.Analyze.Projections.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := analyze.NewProjectionsAnalyzer(p.client, led, p.modelFor("projections"), p.retryOpts, p.logger)
			out, err := a.Analyze(ctx, clusters, summaries)
			if err != nil {
				if p.logger != nil {
					p.logger.Printf("projections analyzer failed: %v", err)
				}
				return
			}
			projections = out
		}()
	}
	if p.cfg.Analyze.Trends.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := analyze.NewTrendsAnalyzer(p.store, p.cfg.Analyze.Trends.MatchThreshold, p.logger)
			out, err := a.Analyze(ctx, clusters, summaries)
			if err != nil {
				if p.logger != nil {
					p.logger.Printf("trends analyzer failed: %v", err)
				}
				return
			}
			trends = out
		}()
	}
	wg.Wait()

	for _, x := range crossRefs {
		if err := p.store.InsertCrossReference(ctx, x, runID); err != nil && p.logger != nil {
			p.logger.Printf("store cross reference: %v", err)
		}
	}
	for _, pr := range projections {
		if err := p.store.InsertProjection(ctx, pr, runID); err != nil && p.logger != nil {
			p.logger.Printf("store projection: %v", err)
		}
	}
	return crossRefs, projections, trends
}

// deliverAll sends the digest to every channel; one channel failing never
// blocks the others.
func (p *Pipeline) deliverAll(ctx context.Context, digest string) {
	for _, ch := range p.channels {
		if err := ch.Send(ctx, digest, nil, ""); err != nil {
			if p.metrics != nil {
				p.metrics.DeliveryErrors.Inc()
			}
			if p.logger != nil {
				p.logger.Printf("delivery via %q failed: %v", ch.Name(), err)
			}
			continue
		}
		if p.logger != nil {
			p.logger.Printf("delivered via %q", ch.Name())
		}
	}
}

func (p *Pipeline) modelFor(task string) config.LLMModel {
	key := p.cfg.LLM.ModelFor(task)
	if m, ok := p.cfg.LLM.Models[key]; ok {
		return m
	}
	return config.LLMModel{APIName: key}
}

// pricing builds the per-model rate table from configuration, keyed by both
// the configured name and the provider API name.
func (p *Pipeline) pricing() map[string]ledger.Pricing {
	prices := make(map[string]ledger.Pricing, len(p.cfg.LLM.Models)*2)
	for name, m := range p.cfg.LLM.Models {
		if m.CostPerMInput <= 0 && m.CostPerMOutput <= 0 {
			continue
		}
		pr := ledger.Pricing{InputPerMillion: m.CostPerMInput, OutputPerMillion: m.CostPerMOutput}
		prices[name] = pr
		if m.APIName != "" {
			prices[m.APIName] = pr
		}
	}
	return prices
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
