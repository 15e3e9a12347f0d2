package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/srinivasgumdelli/moat/internal/models"
)

// Store persists pipeline artifacts in Postgres.
type Store struct {
	DB *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// CreateRun inserts a run in the running state and returns its id.
func (s *Store) CreateRun(ctx context.Context, run *models.PipelineRun) (int64, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO runs (uid, started_at, status)
VALUES ($1, $2, $3)
RETURNING id`, run.UID, run.StartedAt, models.RunStatusRunning).Scan(&run.ID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return run.ID, nil
}

// FinalizeRun writes the terminal state and counters for a run.
func (s *Store) FinalizeRun(ctx context.Context, run *models.PipelineRun) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE runs SET
  status = $2,
  finished_at = $3,
  articles_fetched = $4,
  articles_after_dedup = $5,
  clusters_formed = $6,
  llm_tokens_used = $7,
  llm_cost_usd = $8
WHERE id = $1`,
		run.ID, run.Status, run.FinishedAt, run.ArticlesFetched,
		run.ArticlesAfterDedup, run.ClustersFormed, run.TokensUsed, run.CostUSD)
	if err != nil {
		return fmt.Errorf("finalize run %d: %w", run.ID, err)
	}
	return nil
}

// InsertArticle stores an article, returning the existing row's id when the
// URL was seen before.
func (s *Store) InsertArticle(ctx context.Context, a *models.Article, runID int64) (int64, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO articles (run_id, url, title, content, source_name, source_type, topic, published_at, fetched_at, content_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (url) DO UPDATE SET fetched_at = EXCLUDED.fetched_at
RETURNING id`,
		runID, a.URL, a.Title, a.Content, a.SourceName, a.SourceType,
		a.Topic, a.PublishedAt, a.FetchedAt, a.ContentHash).Scan(&a.ID)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return a.ID, nil
}

// InsertCluster stores a cluster and returns its id.
func (s *Store) InsertCluster(ctx context.Context, c *models.Cluster) (int64, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO clusters (run_id, topic, label, article_count)
VALUES ($1, $2, $3, $4)
RETURNING id`, c.RunID, c.Topic, c.Label, c.ArticleCount).Scan(&c.ID)
	if err != nil {
		return 0, fmt.Errorf("insert cluster: %w", err)
	}
	return c.ID, nil
}

// UpdateClusterLabel persists a label assigned after summarization.
func (s *Store) UpdateClusterLabel(ctx context.Context, clusterID int64, label string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE clusters SET label = $2 WHERE id = $1`, clusterID, label)
	if err != nil {
		return fmt.Errorf("update cluster label: %w", err)
	}
	return nil
}

// UpdateArticleCluster links an article to its cluster.
func (s *Store) UpdateArticleCluster(ctx context.Context, articleID, clusterID int64) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE articles SET cluster_id = $2 WHERE id = $1`, articleID, clusterID)
	if err != nil {
		return fmt.Errorf("update article cluster: %w", err)
	}
	return nil
}

// InsertSummary stores a cluster summary.
func (s *Store) InsertSummary(ctx context.Context, sum *models.Summary) (int64, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO summaries (cluster_id, what_happened, why_it_matters, whats_next, confidence, sources)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
		sum.ClusterID, sum.WhatHappened, sum.WhyItMatters, sum.WhatsNext,
		string(sum.Confidence), pq.Array(sum.Sources)).Scan(&sum.ID)
	if err != nil {
		return 0, fmt.Errorf("insert summary: %w", err)
	}
	return sum.ID, nil
}

// InsertCrossReference stores a detected connection between clusters.
func (s *Store) InsertCrossReference(ctx context.Context, x *models.CrossReference, runID int64) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO cross_references (run_id, cluster_ids, ref_type, description, confidence)
VALUES ($1, $2, $3, $4, $5)`,
		runID, pq.Array(x.ClusterIDs), x.RefType, x.Description, x.Confidence)
	if err != nil {
		return fmt.Errorf("insert cross reference: %w", err)
	}
	return nil
}

// InsertProjection stores a near-term forecast.
func (s *Store) InsertProjection(ctx context.Context, p *models.Projection, runID int64) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO projections (run_id, topic, description, timeframe, confidence, supporting_evidence)
VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, p.Topic, p.Description, p.Timeframe, p.Confidence, p.SupportingEvidence)
	if err != nil {
		return fmt.Errorf("insert projection: %w", err)
	}
	return nil
}

// PreviousRunID returns the most recent completed run before the current one.
func (s *Store) PreviousRunID(ctx context.Context, currentRunID int64) (int64, bool, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
SELECT id FROM runs
WHERE id < $1 AND status = $2
ORDER BY id DESC
LIMIT 1`, currentRunID, models.RunStatusCompleted).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("previous run: %w", err)
	}
	return id, true, nil
}

// ClustersWithSummaries loads a run's clusters along with each cluster's
// summary when one exists.
func (s *Store) ClustersWithSummaries(ctx context.Context, runID int64) ([]*models.Cluster, map[int64]*models.Summary, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT c.id, c.topic, c.label, c.article_count,
       s.id, s.what_happened, s.why_it_matters, s.whats_next, s.confidence, s.sources
FROM clusters c
LEFT JOIN summaries s ON s.cluster_id = c.id
WHERE c.run_id = $1
ORDER BY c.id`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("clusters for run %d: %w", runID, err)
	}
	defer rows.Close()

	var clusters []*models.Cluster
	summaries := make(map[int64]*models.Summary)
	for rows.Next() {
		c := &models.Cluster{RunID: runID}
		var (
			sumID        sql.NullInt64
			whatHappened sql.NullString
			whyItMatters sql.NullString
			whatsNext    sql.NullString
			confidence   sql.NullString
			sources      pq.StringArray
		)
		if err := rows.Scan(&c.ID, &c.Topic, &c.Label, &c.ArticleCount,
			&sumID, &whatHappened, &whyItMatters, &whatsNext, &confidence, &sources); err != nil {
			return nil, nil, fmt.Errorf("scan cluster row: %w", err)
		}
		clusters = append(clusters, c)
		if sumID.Valid {
			summaries[c.ID] = &models.Summary{
				ID:           sumID.Int64,
				ClusterID:    c.ID,
				WhatHappened: whatHappened.String,
				WhyItMatters: whyItMatters.String,
				WhatsNext:    whatsNext.String,
				Confidence:   models.Confidence(confidence.String),
				Sources:      sources,
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate cluster rows: %w", err)
	}
	return clusters, summaries, nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, uid, started_at, finished_at, status,
       articles_fetched, articles_after_dedup, clusters_formed,
       llm_tokens_used, llm_cost_usd
FROM runs
ORDER BY id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PipelineRun
	for rows.Next() {
		r := &models.PipelineRun{}
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.UID, &r.StartedAt, &finished, &r.Status,
			&r.ArticlesFetched, &r.ArticlesAfterDedup, &r.ClustersFormed,
			&r.TokensUsed, &r.CostUSD); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
