package analyze

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/ledger"
	"github.com/srinivasgumdelli/moat/internal/llm"
	"github.com/srinivasgumdelli/moat/internal/models"
	"github.com/srinivasgumdelli/moat/internal/retry"
)

// CrossRefAnalyzer asks the model for contradictions, shared patterns, and
// implicit links between clusters from different topics.
type CrossRefAnalyzer struct {
	client    llm.Client
	ledger    *ledger.Ledger
	logger    *log.Logger
	model     config.LLMModel
	retryOpts retry.Options
}

func NewCrossRefAnalyzer(client llm.Client, led *ledger.Ledger, model config.LLMModel, retryOpts retry.Options, logger *log.Logger) *CrossRefAnalyzer {
	return &CrossRefAnalyzer{client: client, ledger: led, model: model, retryOpts: retryOpts, logger: logger}
}

type crossRefPayload struct {
	CrossReferences []struct {
		ClusterIDs  []int64 `json:"cluster_ids"`
		RefType     string  `json:"ref_type"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	} `json:"cross_references"`
}

func (a *CrossRefAnalyzer) Analyze(ctx context.Context, clusters []*models.Cluster, summaries []*models.Summary) ([]*models.CrossReference, error) {
	if len(clusters) < 2 {
		return nil, nil
	}

	summaryByCluster := make(map[int64]*models.Summary, len(summaries))
	for _, s := range summaries {
		summaryByCluster[s.ClusterID] = s
	}

	var descs []string
	for _, c := range clusters {
		if s := summaryByCluster[c.ID]; s != nil {
			descs = append(descs, fmt.Sprintf("[Cluster %d] Topic: %s | Label: %s\n  What: %s\n  Why: %s",
				c.ID, c.Topic, c.Label, s.WhatHappened, s.WhyItMatters))
		} else {
			descs = append(descs, fmt.Sprintf("[Cluster %d] Topic: %s | Label: %s (%d articles)",
				c.ID, c.Topic, c.Label, c.ArticleCount))
		}
	}
	prompt := fmt.Sprintf(llm.CrossRefPrompt, strings.Join(descs, "\n\n"))

	resp, err := complete(ctx, a.client, a.ledger, a.model, a.retryOpts, a.logger, prompt)
	if err != nil {
		return nil, fmt.Errorf("crossref completion: %w", err)
	}

	var data crossRefPayload
	if err := llm.ExtractJSON(resp.Text, &data); err != nil {
		if a.logger != nil {
			a.logger.Printf("crossref: unparseable response, skipping")
		}
		return nil, nil
	}

	out := make([]*models.CrossReference, 0, len(data.CrossReferences))
	for _, r := range data.CrossReferences {
		if r.Description == "" {
			continue
		}
		conf := r.Confidence
		if conf <= 0 {
			conf = 0.5
		}
		out = append(out, &models.CrossReference{
			ClusterIDs:  r.ClusterIDs,
			RefType:     r.RefType,
			Description: r.Description,
			Confidence:  conf,
		})
	}
	if a.logger != nil {
		a.logger.Printf("crossref: found %d cross-references", len(out))
	}
	return out, nil
}

// complete is the shared completion path for LLM-backed analyzers.
func complete(ctx context.Context, client llm.Client, led *ledger.Ledger, model config.LLMModel, retryOpts retry.Options, logger *log.Logger, prompt string) (llm.Response, error) {
	resp, err := retry.Do(ctx, retryOpts, logger, func(ctx context.Context) (llm.Response, error) {
		return client.Complete(ctx, llm.Request{
			System:      llm.SystemAnalyst,
			Prompt:      prompt,
			Model:       model.APIName,
			MaxTokens:   model.MaxTokens,
			Temperature: float32(model.Temperature),
		})
	})
	if err != nil {
		return llm.Response{}, err
	}
	if led != nil {
		led.Record(resp.InputTokens, resp.OutputTokens, resp.Model)
	}
	return resp, nil
}
