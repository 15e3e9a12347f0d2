package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Confidence is the analyst confidence scale attached to summaries.
// The four levels are ordered from weakest to strongest.
type Confidence string

const (
	ConfidenceSpeculative Confidence = "speculative"
	ConfidenceDeveloping  Confidence = "developing"
	ConfidenceLikely      Confidence = "likely"
	ConfidenceConfirmed   Confidence = "confirmed"
)

var confidenceOrder = map[Confidence]int{
	ConfidenceSpeculative: 0,
	ConfidenceDeveloping:  1,
	ConfidenceLikely:      2,
	ConfidenceConfirmed:   3,
}

// Rank returns the ordinal position of a confidence level, or -1 when the
// value is not one of the four known levels.
func (c Confidence) Rank() int {
	if r, ok := confidenceOrder[c]; ok {
		return r
	}
	return -1
}

// NormalizeConfidence maps arbitrary model output onto the confidence scale.
// Anything unrecognized becomes "developing".
func NormalizeConfidence(s string) Confidence {
	c := Confidence(s)
	if _, ok := confidenceOrder[c]; ok {
		return c
	}
	return ConfidenceDeveloping
}

// Article is a normalized content item from any source, pre-dedup.
type Article struct {
	ID          int64      `json:"id,omitempty"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	SourceName  string     `json:"source_name"`
	SourceType  string     `json:"source_type"`
	Topic       string     `json:"topic"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
	ContentHash string     `json:"content_hash"`
	Embedding   []float32  `json:"-"`
	ClusterID   int64      `json:"cluster_id,omitempty"`
}

// NewArticle builds an article and stamps its content fingerprint.
func NewArticle(url, title, content, sourceName, sourceType, topic string, publishedAt *time.Time) *Article {
	return &Article{
		URL:         url,
		Title:       title,
		Content:     content,
		SourceName:  sourceName,
		SourceType:  sourceType,
		Topic:       topic,
		PublishedAt: publishedAt,
		FetchedAt:   time.Now().UTC(),
		ContentHash: Fingerprint(content),
	}
}

// Fingerprint returns a short deterministic hash of article body text, used
// for exact-duplicate detection.
func Fingerprint(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// Cluster is a group of articles judged to describe the same story.
// All members share the cluster's topic; ArticleCount always equals
// len(Articles).
type Cluster struct {
	ID           int64      `json:"id,omitempty"`
	Topic        string     `json:"topic"`
	Label        string     `json:"label"`
	ArticleCount int        `json:"article_count"`
	RunID        int64      `json:"run_id"`
	Articles     []*Article `json:"articles,omitempty"`
}

// Summary is the BLUF (bottom line up front) narrative for one cluster.
type Summary struct {
	ID           int64      `json:"id,omitempty"`
	ClusterID    int64      `json:"cluster_id"`
	WhatHappened string     `json:"what_happened"`
	WhyItMatters string     `json:"why_it_matters"`
	WhatsNext    string     `json:"whats_next"`
	Confidence   Confidence `json:"confidence"`
	Sources      []string   `json:"sources"`
}

// CrossReference is a connection detected between clusters, usually across
// topics: a contradiction, a shared pattern, or an implicit link.
type CrossReference struct {
	ID          int64   `json:"id,omitempty"`
	ClusterIDs  []int64 `json:"cluster_ids"`
	RefType     string  `json:"ref_type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Projection is a near-term forecast derived from the current digest.
type Projection struct {
	ID                 int64  `json:"id,omitempty"`
	Topic              string `json:"topic"`
	Description        string `json:"description"`
	Timeframe          string `json:"timeframe"`
	Confidence         string `json:"confidence"`
	SupportingEvidence string `json:"supporting_evidence"`
}

// Trend types relating a current-run cluster to its best match in the
// previous run.
const (
	TrendEscalating   = "escalating"
	TrendContinuing   = "continuing"
	TrendDeEscalating = "de-escalating"
)

// Trend classifies how a story changed relative to the previous run.
type Trend struct {
	ClusterID     int64  `json:"cluster_id"`
	Topic         string `json:"topic"`
	CurrentLabel  string `json:"current_label"`
	PreviousLabel string `json:"previous_label"`
	TrendType     string `json:"trend_type"`
	Description   string `json:"description"`
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// PipelineRun records a single pipeline execution. UID is a process-unique
// identifier used in logs and digests; ID is the durable store identifier.
type PipelineRun struct {
	ID                 int64      `json:"id,omitempty"`
	UID                string     `json:"uid"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	Status             string     `json:"status"`
	ArticlesFetched    int64      `json:"articles_fetched"`
	ArticlesAfterDedup int64      `json:"articles_after_dedup"`
	ClustersFormed     int64      `json:"clusters_formed"`
	TokensUsed         int64      `json:"tokens_used"`
	CostUSD            float64    `json:"cost_usd"`
}
