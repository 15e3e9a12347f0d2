package synthesize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/ledger"
	"github.com/srinivasgumdelli/moat/internal/llm"
	"github.com/srinivasgumdelli/moat/internal/models"
	"github.com/srinivasgumdelli/moat/internal/retry"
)

const (
	multiArticleContentLimit  = 800
	singleArticleContentLimit = 2000
	degradedPrefixLimit       = 500
)

// Summarizer produces a BLUF summary per cluster, fanning out over a bounded
// number of concurrent inference calls. A failed cluster is skipped, never
// fatal to the batch.
type Summarizer struct {
	client       llm.Client
	ledger       *ledger.Ledger
	logger       *log.Logger
	model        config.LLMModel
	retryOpts    retry.Options
	concurrency  int
	maxPerPrompt int
}

func NewSummarizer(client llm.Client, led *ledger.Ledger, model config.LLMModel, cfg config.SynthesizeConfig, retryOpts retry.Options, logger *log.Logger) *Summarizer {
	concurrency := cfg.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 10
	}
	maxPerPrompt := cfg.MaxArticlesPerPrompt
	if maxPerPrompt <= 0 {
		maxPerPrompt = 10
	}
	if model.MaxTokens <= 0 {
		model.MaxTokens = cfg.MaxTokens
	}
	if model.Temperature == 0 {
		model.Temperature = cfg.Temperature
	}
	return &Summarizer{
		client:       client,
		ledger:       led,
		logger:       logger,
		model:        model,
		retryOpts:    retryOpts,
		concurrency:  concurrency,
		maxPerPrompt: maxPerPrompt,
	}
}

// Summarize runs every cluster through the model and returns the summaries
// that succeeded, in cluster order.
func (s *Summarizer) Summarize(ctx context.Context, clusters []*models.Cluster) []*models.Summary {
	results := make([]*models.Summary, len(clusters))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, cluster := range clusters {
		wg.Add(1)
		go func(i int, cluster *models.Cluster) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			summary, err := s.summarizeCluster(ctx, cluster)
			if err != nil {
				if s.logger != nil {
					s.logger.Printf("summarize cluster %q failed: %v", cluster.Label, err)
				}
				return
			}
			results[i] = summary
		}(i, cluster)
	}
	wg.Wait()

	summaries := make([]*models.Summary, 0, len(clusters))
	for _, r := range results {
		if r != nil {
			summaries = append(summaries, r)
		}
	}
	return summaries
}

type clusterPayload struct {
	Label        string   `json:"label"`
	Confidence   string   `json:"confidence"`
	WhatHappened string   `json:"what_happened"`
	WhyItMatters string   `json:"why_it_matters"`
	WhatsNext    string   `json:"whats_next"`
	Sources      []string `json:"sources"`
}

func (s *Summarizer) summarizeCluster(ctx context.Context, cluster *models.Cluster) (*models.Summary, error) {
	if len(cluster.Articles) == 0 {
		return nil, fmt.Errorf("cluster %q has no articles", cluster.Label)
	}
	if len(cluster.Articles) == 1 {
		return s.summarizeSingle(ctx, cluster)
	}

	members := cluster.Articles
	if len(members) > s.maxPerPrompt {
		members = members[:s.maxPerPrompt]
	}
	var b strings.Builder
	for i, a := range members {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (Source: %s)\n%s", i+1, a.Title, a.SourceName, truncate(a.Content, multiArticleContentLimit))
	}
	prompt := fmt.Sprintf(llm.SummarizeClusterPrompt, cluster.Topic, b.String())

	resp, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var data clusterPayload
	if err := llm.ExtractJSON(resp.Text, &data); err != nil {
		return s.degraded(cluster, resp.Text), nil
	}
	if data.Label != "" {
		cluster.Label = data.Label
	}
	sources := data.Sources
	if len(sources) == 0 {
		sources = sourceNames(cluster.Articles)
	}
	return &models.Summary{
		ClusterID:    cluster.ID,
		WhatHappened: data.WhatHappened,
		WhyItMatters: data.WhyItMatters,
		WhatsNext:    data.WhatsNext,
		Confidence:   models.NormalizeConfidence(data.Confidence),
		Sources:      sources,
	}, nil
}

func (s *Summarizer) summarizeSingle(ctx context.Context, cluster *models.Cluster) (*models.Summary, error) {
	article := cluster.Articles[0]
	prompt := fmt.Sprintf(llm.SummarizeSinglePrompt,
		cluster.Topic, article.Title, article.SourceName, truncate(article.Content, singleArticleContentLimit))

	resp, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var data clusterPayload
	if err := llm.ExtractJSON(resp.Text, &data); err != nil {
		return s.degraded(cluster, resp.Text), nil
	}
	return &models.Summary{
		ClusterID:    cluster.ID,
		WhatHappened: data.WhatHappened,
		WhyItMatters: data.WhyItMatters,
		WhatsNext:    data.WhatsNext,
		Confidence:   models.NormalizeConfidence(data.Confidence),
		Sources:      []string{article.SourceName},
	}, nil
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (llm.Response, error) {
	resp, err := retry.Do(ctx, s.retryOpts, s.logger, func(ctx context.Context) (llm.Response, error) {
		return s.client.Complete(ctx, llm.Request{
			System:      llm.SystemAnalyst,
			Prompt:      prompt,
			Model:       s.model.APIName,
			MaxTokens:   s.model.MaxTokens,
			Temperature: float32(s.model.Temperature),
		})
	})
	if err != nil {
		return llm.Response{}, err
	}
	if s.ledger != nil {
		s.ledger.Record(resp.InputTokens, resp.OutputTokens, resp.Model)
	}
	return resp, nil
}

// degraded builds a usable summary out of unparseable model output so the
// cluster still appears in the digest.
func (s *Summarizer) degraded(cluster *models.Cluster, raw string) *models.Summary {
	if s.logger != nil {
		s.logger.Printf("summarize: unparseable output for cluster %q, using raw text", cluster.Label)
	}
	return &models.Summary{
		ClusterID:    cluster.ID,
		WhatHappened: truncate(raw, degradedPrefixLimit),
		WhyItMatters: "Could not parse model output; raw text shown above.",
		WhatsNext:    "Review manually.",
		Confidence:   models.ConfidenceDeveloping,
		Sources:      sourceNames(cluster.Articles),
	}
}

func sourceNames(articles []*models.Article) []string {
	seen := make(map[string]struct{}, len(articles))
	names := make([]string, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.SourceName]; ok {
			continue
		}
		seen[a.SourceName] = struct{}{}
		names = append(names, a.SourceName)
	}
	return names
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
