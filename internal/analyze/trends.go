package analyze

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/srinivasgumdelli/moat/internal/models"
)

// TrendStore is the slice of persistence the trends analyzer needs: the run
// before the current one, and that run's clusters with their summaries.
type TrendStore interface {
	PreviousRunID(ctx context.Context, currentRunID int64) (int64, bool, error)
	ClustersWithSummaries(ctx context.Context, runID int64) ([]*models.Cluster, map[int64]*models.Summary, error)
}

// TrendsAnalyzer matches current clusters against the previous run's clusters
// to spot stories that carry over, and classifies each as escalating,
// continuing, or de-escalating based on how confidence moved.
type TrendsAnalyzer struct {
	store     TrendStore
	threshold float64
	logger    *log.Logger
}

func NewTrendsAnalyzer(store TrendStore, threshold float64, logger *log.Logger) *TrendsAnalyzer {
	if threshold <= 0 {
		threshold = 0.55
	}
	return &TrendsAnalyzer{store: store, threshold: threshold, logger: logger}
}

func (a *TrendsAnalyzer) Analyze(ctx context.Context, clusters []*models.Cluster, summaries []*models.Summary) ([]*models.Trend, error) {
	if len(clusters) == 0 || len(summaries) == 0 {
		return nil, nil
	}

	currentRunID := clusters[0].RunID
	prevRunID, ok, err := a.store.PreviousRunID(ctx, currentRunID)
	if err != nil {
		return nil, fmt.Errorf("previous run lookup: %w", err)
	}
	if !ok {
		if a.logger != nil {
			a.logger.Printf("trends: no previous run, skipping")
		}
		return nil, nil
	}

	prevClusters, prevSummaries, err := a.store.ClustersWithSummaries(ctx, prevRunID)
	if err != nil {
		return nil, fmt.Errorf("previous clusters lookup: %w", err)
	}
	if len(prevClusters) == 0 {
		return nil, nil
	}

	summaryByCluster := make(map[int64]*models.Summary, len(summaries))
	for _, s := range summaries {
		summaryByCluster[s.ClusterID] = s
	}

	var trends []*models.Trend
	for _, cluster := range clusters {
		current := summaryByCluster[cluster.ID]
		if current == nil {
			continue
		}
		if t := a.bestMatch(cluster, current, prevClusters, prevSummaries); t != nil {
			trends = append(trends, t)
		}
	}
	if a.logger != nil {
		a.logger.Printf("trends: detected %d developing stories", len(trends))
	}
	return trends, nil
}

func (a *TrendsAnalyzer) bestMatch(current *models.Cluster, currentSummary *models.Summary, prevClusters []*models.Cluster, prevSummaries map[int64]*models.Summary) *models.Trend {
	currentWords := wordSet(current.Label + " " + currentSummary.WhatHappened)
	if len(currentWords) == 0 {
		return nil
	}

	var (
		bestScore   float64
		bestCluster *models.Cluster
		bestSummary *models.Summary
	)
	for _, prev := range prevClusters {
		if prev.Topic != current.Topic {
			continue
		}
		prevSummary := prevSummaries[prev.ID]
		if prevSummary == nil {
			continue
		}
		prevWords := wordSet(prev.Label + " " + prevSummary.WhatHappened)
		score := jaccard(currentWords, prevWords)
		if score > bestScore {
			bestScore = score
			bestCluster = prev
			bestSummary = prevSummary
		}
	}
	if bestCluster == nil || bestScore < a.threshold {
		return nil
	}

	return &models.Trend{
		ClusterID:     current.ID,
		Topic:         current.Topic,
		CurrentLabel:  current.Label,
		PreviousLabel: bestCluster.Label,
		TrendType:     classifyTrend(currentSummary, bestSummary),
		Description:   fmt.Sprintf("Story continues from previous run: %q -> %q", bestCluster.Label, current.Label),
	}
}

// classifyTrend compares confidence ranks between runs. Values outside the
// known ladder read as no movement.
func classifyTrend(current, previous *models.Summary) string {
	cur := current.Confidence.Rank()
	prev := previous.Confidence.Rank()
	if cur < 0 || prev < 0 {
		return models.TrendContinuing
	}
	switch {
	case cur > prev:
		return models.TrendEscalating
	case cur < prev:
		return models.TrendDeEscalating
	default:
		return models.TrendContinuing
	}
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
