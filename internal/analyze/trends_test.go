package analyze

import (
	"context"
	"testing"

	"github.com/srinivasgumdelli/moat/internal/models"
)

type fakeTrendStore struct {
	prevRunID  int64
	hasPrev    bool
	clusters   []*models.Cluster
	summaries  map[int64]*models.Summary
	lookupErrs error
}

func (f *fakeTrendStore) PreviousRunID(ctx context.Context, currentRunID int64) (int64, bool, error) {
	return f.prevRunID, f.hasPrev, f.lookupErrs
}

func (f *fakeTrendStore) ClustersWithSummaries(ctx context.Context, runID int64) ([]*models.Cluster, map[int64]*models.Summary, error) {
	return f.clusters, f.summaries, f.lookupErrs
}

func TestTrendsIdenticalStoryContinues(t *testing.T) {
	store := &fakeTrendStore{
		prevRunID: 1,
		hasPrev:   true,
		clusters:  []*models.Cluster{{ID: 10, Topic: "tech", Label: "Chip export controls tighten"}},
		summaries: map[int64]*models.Summary{
			10: {ClusterID: 10, WhatHappened: "New export controls announced", Confidence: models.ConfidenceLikely},
		},
	}
	a := NewTrendsAnalyzer(store, 0.55, nil)

	clusters := []*models.Cluster{{ID: 20, RunID: 2, Topic: "tech", Label: "Chip export controls tighten"}}
	summaries := []*models.Summary{{ClusterID: 20, WhatHappened: "New export controls announced", Confidence: models.ConfidenceLikely}}

	trends, err := a.Analyze(context.Background(), clusters, summaries)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(trends) != 1 {
		t.Fatalf("expected 1 trend, got %d", len(trends))
	}
	if trends[0].TrendType != models.TrendContinuing {
		t.Fatalf("same confidence should read continuing, got %q", trends[0].TrendType)
	}
	if trends[0].ClusterID != 20 || trends[0].PreviousLabel != "Chip export controls tighten" {
		t.Fatalf("trend fields wrong: %+v", trends[0])
	}
}

func TestTrendsConfidenceRiseEscalates(t *testing.T) {
	store := &fakeTrendStore{
		prevRunID: 1,
		hasPrev:   true,
		clusters:  []*models.Cluster{{ID: 10, Topic: "geopolitics", Label: "Border talks stall over disputed zone"}},
		summaries: map[int64]*models.Summary{
			10: {ClusterID: 10, WhatHappened: "Border talks stall over disputed zone", Confidence: models.ConfidenceDeveloping},
		},
	}
	a := NewTrendsAnalyzer(store, 0.55, nil)

	clusters := []*models.Cluster{{ID: 20, RunID: 2, Topic: "geopolitics", Label: "Border talks stall over disputed zone"}}
	summaries := []*models.Summary{{ClusterID: 20, WhatHappened: "Border talks stall over disputed zone", Confidence: models.ConfidenceConfirmed}}

	trends, err := a.Analyze(context.Background(), clusters, summaries)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(trends) != 1 || trends[0].TrendType != models.TrendEscalating {
		t.Fatalf("confidence rise should escalate, got %+v", trends)
	}
}

func TestTrendsConfidenceDropDeEscalates(t *testing.T) {
	store := &fakeTrendStore{
		prevRunID: 1,
		hasPrev:   true,
		clusters:  []*models.Cluster{{ID: 10, Topic: "finance", Label: "Bank run fears spread in regional lenders"}},
		summaries: map[int64]*models.Summary{
			10: {ClusterID: 10, WhatHappened: "Bank run fears spread in regional lenders", Confidence: models.ConfidenceConfirmed},
		},
	}
	a := NewTrendsAnalyzer(store, 0.55, nil)

	clusters := []*models.Cluster{{ID: 20, RunID: 2, Topic: "finance", Label: "Bank run fears spread in regional lenders"}}
	summaries := []*models.Summary{{ClusterID: 20, WhatHappened: "Bank run fears spread in regional lenders", Confidence: models.ConfidenceSpeculative}}

	trends, err := a.Analyze(context.Background(), clusters, summaries)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(trends) != 1 || trends[0].TrendType != models.TrendDeEscalating {
		t.Fatalf("confidence drop should de-escalate, got %+v", trends)
	}
}

func TestTrendsBelowThresholdNoMatch(t *testing.T) {
	store := &fakeTrendStore{
		prevRunID: 1,
		hasPrev:   true,
		clusters:  []*models.Cluster{{ID: 10, Topic: "tech", Label: "Completely unrelated story about gardening"}},
		summaries: map[int64]*models.Summary{
			10: {ClusterID: 10, WhatHappened: "Tomatoes flourish in new greenhouse", Confidence: models.ConfidenceLikely},
		},
	}
	a := NewTrendsAnalyzer(store, 0.55, nil)

	clusters := []*models.Cluster{{ID: 20, RunID: 2, Topic: "tech", Label: "Quantum encryption breakthrough"}}
	summaries := []*models.Summary{{ClusterID: 20, WhatHappened: "Lab demonstrates new key exchange", Confidence: models.ConfidenceLikely}}

	trends, err := a.Analyze(context.Background(), clusters, summaries)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(trends) != 0 {
		t.Fatalf("dissimilar stories must not match, got %+v", trends)
	}
}

func TestTrendsTopicScoped(t *testing.T) {
	store := &fakeTrendStore{
		prevRunID: 1,
		hasPrev:   true,
		clusters:  []*models.Cluster{{ID: 10, Topic: "finance", Label: "Chip export controls tighten"}},
		summaries: map[int64]*models.Summary{
			10: {ClusterID: 10, WhatHappened: "New export controls announced", Confidence: models.ConfidenceLikely},
		},
	}
	a := NewTrendsAnalyzer(store, 0.55, nil)

	clusters := []*models.Cluster{{ID: 20, RunID: 2, Topic: "tech", Label: "Chip export controls tighten"}}
	summaries := []*models.Summary{{ClusterID: 20, WhatHappened: "New export controls announced", Confidence: models.ConfidenceLikely}}

	trends, err := a.Analyze(context.Background(), clusters, summaries)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(trends) != 0 {
		t.Fatalf("clusters from different topics must not match, got %+v", trends)
	}
}

func TestTrendsNoPreviousRun(t *testing.T) {
	a := NewTrendsAnalyzer(&fakeTrendStore{hasPrev: false}, 0.55, nil)

	clusters := []*models.Cluster{{ID: 20, RunID: 1, Topic: "tech", Label: "First story"}}
	summaries := []*models.Summary{{ClusterID: 20, WhatHappened: "Something", Confidence: models.ConfidenceLikely}}

	trends, err := a.Analyze(context.Background(), clusters, summaries)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(trends) != 0 {
		t.Fatalf("first run has no trends, got %+v", trends)
	}
}

func TestJaccard(t *testing.T) {
	a := wordSet("alpha beta gamma")
	b := wordSet("beta gamma delta")
	got := jaccard(a, b)
	if got < 0.499 || got > 0.501 {
		t.Fatalf("jaccard: got %v want 0.5", got)
	}
	if jaccard(wordSet(""), b) != 0 {
		t.Fatalf("empty set must score 0")
	}
}
