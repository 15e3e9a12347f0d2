package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/srinivasgumdelli/moat/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestCreateRun(t *testing.T) {
	st, mock := newMockStore(t)

	run := &models.PipelineRun{UID: "run-abc", StartedAt: time.Now().UTC()}
	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO runs (uid, started_at, status)
VALUES ($1, $2, $3)
RETURNING id`)).
		WithArgs(run.UID, run.StartedAt, models.RunStatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := st.CreateRun(context.Background(), run)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if id != 7 || run.ID != 7 {
		t.Fatalf("run id: got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertArticleReturnsExistingID(t *testing.T) {
	st, mock := newMockStore(t)

	a := models.NewArticle("https://example.com/story", "Story", "body", "HN", "hackernews", "tech", nil)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (url) DO UPDATE SET fetched_at = EXCLUDED.fetched_at")).
		WithArgs(int64(3), a.URL, a.Title, a.Content, a.SourceName, a.SourceType, a.Topic, a.PublishedAt, a.FetchedAt, a.ContentHash).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))

	id, err := st.InsertArticle(context.Background(), a, 3)
	if err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}
	if id != 99 || a.ID != 99 {
		t.Fatalf("article id: got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinalizeRun(t *testing.T) {
	st, mock := newMockStore(t)

	finished := time.Now().UTC()
	run := &models.PipelineRun{
		ID:                 5,
		Status:             models.RunStatusCompleted,
		FinishedAt:         &finished,
		ArticlesFetched:    40,
		ArticlesAfterDedup: 31,
		ClustersFormed:     6,
		TokensUsed:         12345,
		CostUSD:            0.42,
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE runs SET")).
		WithArgs(run.ID, run.Status, run.FinishedAt, run.ArticlesFetched,
			run.ArticlesAfterDedup, run.ClustersFormed, run.TokensUsed, run.CostUSD).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.FinalizeRun(context.Background(), run); err != nil {
		t.Fatalf("FinalizeRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPreviousRunID(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM runs")).
		WithArgs(int64(10), models.RunStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))

	id, ok, err := st.PreviousRunID(context.Background(), 10)
	if err != nil || !ok || id != 8 {
		t.Fatalf("PreviousRunID: id=%d ok=%v err=%v", id, ok, err)
	}
}

func TestPreviousRunIDNone(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM runs")).
		WithArgs(int64(1), models.RunStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := st.PreviousRunID(context.Background(), 1)
	if err != nil {
		t.Fatalf("PreviousRunID: %v", err)
	}
	if ok {
		t.Fatalf("first run must report no previous run")
	}
}

func TestClustersWithSummaries(t *testing.T) {
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "topic", "label", "article_count",
		"sid", "what_happened", "why_it_matters", "whats_next", "confidence", "sources",
	}).
		AddRow(int64(1), "tech", "Story A", 3, int64(11), "w", "m", "n", "likely", "{HN,FT}").
		AddRow(int64(2), "tech", "Story B", 1, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN summaries s ON s.cluster_id = c.id")).
		WithArgs(int64(4)).
		WillReturnRows(rows)

	clusters, summaries, err := st.ClustersWithSummaries(context.Background(), 4)
	if err != nil {
		t.Fatalf("ClustersWithSummaries: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[1]
	if s == nil || s.Confidence != models.ConfidenceLikely || len(s.Sources) != 2 {
		t.Fatalf("summary wrong: %+v", s)
	}
}

func TestUpdateArticleCluster(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET cluster_id = $2 WHERE id = $1")).
		WithArgs(int64(9), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.UpdateArticleCluster(context.Background(), 9, 2); err != nil {
		t.Fatalf("UpdateArticleCluster: %v", err)
	}
}
