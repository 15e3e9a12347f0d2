package synthesize

import (
	"fmt"
	"strings"
	"time"

	"github.com/srinivasgumdelli/moat/internal/models"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

var trendMarkers = map[string]string{
	models.TrendEscalating:   "↑ ESCALATING",
	models.TrendContinuing:   "→ CONTINUING",
	models.TrendDeEscalating: "↓ DE-ESCALATING",
}

// Digest holds everything that goes into the rendered briefing.
type Digest struct {
	Topics      []string
	Clusters    []*models.Cluster
	Summaries   []*models.Summary
	CrossRefs   []*models.CrossReference
	Projections []*models.Projection
	Trends      []*models.Trend
	Run         *models.PipelineRun
}

// FormatDigest renders the briefing as plain Markdown text, grouped by topic
// in the order topics were configured.
func FormatDigest(d Digest) string {
	now := time.Now().UTC()
	period := "Evening"
	if now.Hour() < 12 {
		period = "Morning"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INTEL DIGEST - %s (%s)\n%s\n\n", now.Format("Jan 02, 2006"), period, rule)

	summaryByCluster := make(map[int64]*models.Summary, len(d.Summaries))
	for _, s := range d.Summaries {
		summaryByCluster[s.ClusterID] = s
	}
	byTopic := make(map[string][]*models.Cluster)
	for _, c := range d.Clusters {
		if summaryByCluster[c.ID] == nil {
			continue
		}
		byTopic[c.Topic] = append(byTopic[c.Topic], c)
	}
	trendByCluster := make(map[int64]*models.Trend, len(d.Trends))
	for _, t := range d.Trends {
		trendByCluster[t.ClusterID] = t
	}

	counter := 1
	for _, topic := range topicOrder(d.Topics, d.Clusters) {
		clusters := byTopic[topic]
		if len(clusters) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", strings.ToUpper(topic))
		for _, c := range clusters {
			s := summaryByCluster[c.ID]
			header := fmt.Sprintf("%d. [%s] %s", counter, strings.ToUpper(string(s.Confidence)), c.Label)
			if t := trendByCluster[c.ID]; t != nil {
				if marker, ok := trendMarkers[t.TrendType]; ok {
					header += " " + marker
				}
			}
			b.WriteString(header + "\n")
			fmt.Fprintf(&b, "   What: %s\n", s.WhatHappened)
			fmt.Fprintf(&b, "   Why: %s\n", s.WhyItMatters)
			fmt.Fprintf(&b, "   Next: %s\n", s.WhatsNext)
			fmt.Fprintf(&b, "   (Sources: %s)\n\n", sourcesLine(s.Sources))
			counter++
		}
	}

	if len(d.CrossRefs) > 0 {
		b.WriteString("CROSS-REFERENCES\n\n")
		for _, x := range d.CrossRefs {
			label := strings.ToUpper(strings.ReplaceAll(x.RefType, "_", " "))
			fmt.Fprintf(&b, "- [%s] %s\n", label, x.Description)
		}
		b.WriteString("\n")
	}

	if len(d.Projections) > 0 {
		b.WriteString("PROJECTIONS\n\n")
		for _, p := range d.Projections {
			fmt.Fprintf(&b, "- [%s, %s] %s\n", strings.ToUpper(p.Confidence), p.Timeframe, p.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	b.WriteString(footer(d.Clusters, d.Run))
	return b.String()
}

// FormatFallbackDigest renders a raw article listing for runs where every
// summarization attempt failed. It carries no analysis, just what was
// fetched, so the day's delivery still goes out.
func FormatFallbackDigest(topics []string, articles []*models.Article, run *models.PipelineRun) string {
	now := time.Now().UTC()

	var b strings.Builder
	fmt.Fprintf(&b, "INTEL DIGEST - %s (raw listing)\n%s\n\n", now.Format("Jan 02, 2006"), rule)
	b.WriteString("Summarization was unavailable this run. Raw headlines follow.\n\n")

	byTopic := make(map[string][]*models.Article)
	for _, a := range articles {
		byTopic[a.Topic] = append(byTopic[a.Topic], a)
	}
	for _, topic := range topics {
		arts := byTopic[topic]
		if len(arts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", strings.ToUpper(topic))
		for _, a := range arts {
			fmt.Fprintf(&b, "- %s (%s)\n  %s\n", a.Title, a.SourceName, a.URL)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%d articles | summaries unavailable\n", len(articles))
	if run != nil && run.CostUSD > 0 {
		fmt.Fprintf(&b, "$%.2f\n", run.CostUSD)
	}
	return b.String()
}

// topicOrder keeps configured topic order and appends any topic that shows up
// in clusters but not in the configuration.
func topicOrder(configured []string, clusters []*models.Cluster) []string {
	seen := make(map[string]struct{}, len(configured))
	order := make([]string, 0, len(configured))
	for _, t := range configured {
		seen[t] = struct{}{}
		order = append(order, t)
	}
	for _, c := range clusters {
		if _, ok := seen[c.Topic]; !ok {
			seen[c.Topic] = struct{}{}
			order = append(order, c.Topic)
		}
	}
	return order
}

func sourcesLine(sources []string) string {
	if len(sources) == 0 {
		return "Multiple sources"
	}
	if len(sources) > 4 {
		sources = sources[:4]
	}
	return strings.Join(sources, ", ")
}

func footer(clusters []*models.Cluster, run *models.PipelineRun) string {
	total := 0
	for _, c := range clusters {
		total += c.ArticleCount
	}
	parts := []string{
		fmt.Sprintf("%d articles", total),
		fmt.Sprintf("%d clusters", len(clusters)),
	}
	if run != nil && run.CostUSD > 0 {
		parts = append(parts, fmt.Sprintf("$%.2f", run.CostUSD))
	}
	return strings.Join(parts, " | ") + "\n"
}
