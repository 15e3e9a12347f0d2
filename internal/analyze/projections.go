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

// ProjectionsAnalyzer turns the day's summaries into a handful of near-term
// forecasts with timeframe and confidence.
type ProjectionsAnalyzer struct {
	client    llm.Client
	ledger    *ledger.Ledger
	logger    *log.Logger
	model     config.LLMModel
	retryOpts retry.Options
}

func NewProjectionsAnalyzer(client llm.Client, led *ledger.Ledger, model config.LLMModel, retryOpts retry.Options, logger *log.Logger) *ProjectionsAnalyzer {
	return &ProjectionsAnalyzer{client: client, ledger: led, model: model, retryOpts: retryOpts, logger: logger}
}

type projectionsPayload struct {
	Projections []struct {
		Topic              string `json:"topic"`
		Description        string `json:"description"`
		Timeframe          string `json:"timeframe"`
		Confidence         string `json:"confidence"`
		SupportingEvidence string `json:"supporting_evidence"`
	} `json:"projections"`
}

func (a *ProjectionsAnalyzer) Analyze(ctx context.Context, clusters []*models.Cluster, summaries []*models.Summary) ([]*models.Projection, error) {
	if len(summaries) == 0 {
		return nil, nil
	}

	summaryByCluster := make(map[int64]*models.Summary, len(summaries))
	for _, s := range summaries {
		summaryByCluster[s.ClusterID] = s
	}

	var parts []string
	for _, c := range clusters {
		s := summaryByCluster[c.ID]
		if s == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s\n  What: %s\n  Why: %s\n  Next: %s",
			strings.ToUpper(c.Topic), c.Label, s.WhatHappened, s.WhyItMatters, s.WhatsNext))
	}
	prompt := fmt.Sprintf(llm.ProjectionsPrompt, strings.Join(parts, "\n\n"))

	resp, err := complete(ctx, a.client, a.ledger, a.model, a.retryOpts, a.logger, prompt)
	if err != nil {
		return nil, fmt.Errorf("projections completion: %w", err)
	}

	var data projectionsPayload
	if err := llm.ExtractJSON(resp.Text, &data); err != nil {
		if a.logger != nil {
			a.logger.Printf("projections: unparseable response, skipping")
		}
		return nil, nil
	}

	out := make([]*models.Projection, 0, len(data.Projections))
	for _, p := range data.Projections {
		if p.Description == "" {
			continue
		}
		proj := &models.Projection{
			Topic:              p.Topic,
			Description:        p.Description,
			Timeframe:          p.Timeframe,
			Confidence:         p.Confidence,
			SupportingEvidence: p.SupportingEvidence,
		}
		if proj.Topic == "" {
			proj.Topic = "general"
		}
		if proj.Timeframe == "" {
			proj.Timeframe = "weeks"
		}
		if proj.Confidence == "" {
			proj.Confidence = "possible"
		}
		out = append(out, proj)
	}
	if a.logger != nil {
		a.logger.Printf("projections: generated %d projections", len(out))
	}
	return out, nil
}
