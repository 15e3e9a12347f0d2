package synthesize

import (
	"strings"
	"testing"

	"github.com/srinivasgumdelli/moat/internal/models"
)

func TestFormatDigestGroupsByTopic(t *testing.T) {
	clusters := []*models.Cluster{
		{ID: 1, Topic: "finance", Label: "Rates hold", ArticleCount: 2},
		{ID: 2, Topic: "tech", Label: "Chip export rules", ArticleCount: 3},
	}
	summaries := []*models.Summary{
		{ClusterID: 1, WhatHappened: "Central bank held rates.", WhyItMatters: "Signals caution.", WhatsNext: "Next meeting.", Confidence: models.ConfidenceConfirmed, Sources: []string{"FT"}},
		{ClusterID: 2, WhatHappened: "New export controls.", WhyItMatters: "Supply chains shift.", WhatsNext: "Vendor responses.", Confidence: models.ConfidenceLikely, Sources: []string{"Reuters", "HN"}},
	}
	out := FormatDigest(Digest{
		Topics:    []string{"tech", "finance"},
		Clusters:  clusters,
		Summaries: summaries,
		Trends:    []*models.Trend{{ClusterID: 2, TrendType: models.TrendEscalating}},
	})

	techIdx := strings.Index(out, "TECH")
	finIdx := strings.Index(out, "FINANCE")
	if techIdx < 0 || finIdx < 0 || techIdx > finIdx {
		t.Fatalf("topics must render in configured order:\n%s", out)
	}
	if !strings.Contains(out, "[LIKELY] Chip export rules") {
		t.Fatalf("missing confidence tag and label:\n%s", out)
	}
	if !strings.Contains(out, "ESCALATING") {
		t.Fatalf("missing trend marker:\n%s", out)
	}
	if !strings.Contains(out, "5 articles | 2 clusters") {
		t.Fatalf("missing footer counters:\n%s", out)
	}
}

func TestFormatDigestSkipsClustersWithoutSummaries(t *testing.T) {
	clusters := []*models.Cluster{
		{ID: 1, Topic: "tech", Label: "Summarized", ArticleCount: 1},
		{ID: 2, Topic: "tech", Label: "Orphaned", ArticleCount: 1},
	}
	summaries := []*models.Summary{
		{ClusterID: 1, WhatHappened: "w", WhyItMatters: "m", WhatsNext: "n", Confidence: models.ConfidenceDeveloping},
	}
	out := FormatDigest(Digest{Topics: []string{"tech"}, Clusters: clusters, Summaries: summaries})
	if strings.Contains(out, "Orphaned") {
		t.Fatalf("cluster without summary must not render:\n%s", out)
	}
}

func TestFormatDigestSections(t *testing.T) {
	out := FormatDigest(Digest{
		Topics:    []string{"tech"},
		Clusters:  []*models.Cluster{{ID: 1, Topic: "tech", Label: "L", ArticleCount: 1}},
		Summaries: []*models.Summary{{ClusterID: 1, WhatHappened: "w", WhyItMatters: "m", WhatsNext: "n", Confidence: models.ConfidenceLikely}},
		CrossRefs: []*models.CrossReference{{RefType: "implicit_connection", Description: "A affects B"}},
		Projections: []*models.Projection{
			{Description: "Further controls", Timeframe: "weeks", Confidence: "likely"},
		},
	})
	if !strings.Contains(out, "[IMPLICIT CONNECTION] A affects B") {
		t.Fatalf("cross reference section wrong:\n%s", out)
	}
	if !strings.Contains(out, "[LIKELY, weeks] Further controls") {
		t.Fatalf("projections section wrong:\n%s", out)
	}
}

func TestFormatFallbackDigest(t *testing.T) {
	articles := []*models.Article{
		models.NewArticle("https://x/1", "Headline one", "c", "HN", "hackernews", "tech", nil),
		models.NewArticle("https://x/2", "Headline two", "c", "FT", "rss", "finance", nil),
	}
	out := FormatFallbackDigest([]string{"tech", "finance"}, articles, nil)
	if !strings.Contains(out, "Headline one") || !strings.Contains(out, "Headline two") {
		t.Fatalf("fallback must list every article:\n%s", out)
	}
	if !strings.Contains(out, "Summarization was unavailable") {
		t.Fatalf("fallback must say summaries are missing:\n%s", out)
	}
	if !strings.Contains(out, "2 articles") {
		t.Fatalf("fallback footer missing:\n%s", out)
	}
}
