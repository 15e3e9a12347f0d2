package process

import (
	"context"
	"testing"

	"github.com/srinivasgumdelli/moat/internal/models"
)

func TestClusterTwoGroups(t *testing.T) {
	arts := []*models.Article{
		mkArticle("a1", "alpha one"),
		mkArticle("b1", "beta one"),
		mkArticle("a2", "alpha two"),
		mkArticle("b2", "beta two"),
		mkArticle("a3", "alpha three"),
		mkArticle("b3", "beta three"),
	}
	vectors := map[string][]float32{
		EmbeddingText(arts[0]): {1, 0, 0},
		EmbeddingText(arts[1]): {0, 1, 0},
		EmbeddingText(arts[2]): {0.98, 0.02, 0},
		EmbeddingText(arts[3]): {0.02, 0.98, 0},
		EmbeddingText(arts[4]): {0.97, 0.03, 0},
		EmbeddingText(arts[5]): {0.03, 0.97, 0},
	}
	c := NewClusterer(0.6, &stubEmbedder{vectors: vectors}, nil, nil)

	clusters, err := c.Cluster(context.Background(), arts, "topic", 7)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	for _, cl := range clusters {
		if cl.ArticleCount != 3 || len(cl.Articles) != 3 {
			t.Fatalf("expected 3 members per cluster, got %d", len(cl.Articles))
		}
		if cl.Topic != "topic" || cl.RunID != 7 {
			t.Fatalf("cluster metadata not propagated: %+v", cl)
		}
	}
	// First cluster should contain the first article.
	if clusters[0].Articles[0] != arts[0] {
		t.Fatalf("clusters should be ordered by earliest member")
	}
	if clusters[0].Label != "Cluster 1" || clusters[1].Label != "Cluster 2" {
		t.Fatalf("placeholder labels wrong: %q %q", clusters[0].Label, clusters[1].Label)
	}
}

func TestClusterSingleArticle(t *testing.T) {
	a := mkArticle("solo", "alone")
	c := NewClusterer(0.6, &stubEmbedder{vectors: map[string][]float32{}}, nil, nil)

	clusters, err := c.Cluster(context.Background(), []*models.Article{a}, "topic", 1)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(clusters) != 1 || clusters[0].ArticleCount != 1 {
		t.Fatalf("single article should form a singleton cluster, got %+v", clusters)
	}
}

func TestClusterDistantArticlesStaySeparate(t *testing.T) {
	a := mkArticle("a", "one")
	b := mkArticle("b", "two")
	vectors := map[string][]float32{
		EmbeddingText(a): {1, 0},
		EmbeddingText(b): {0, 1},
	}
	c := NewClusterer(0.6, &stubEmbedder{vectors: vectors}, nil, nil)

	clusters, err := c.Cluster(context.Background(), []*models.Article{a, b}, "topic", 1)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("orthogonal vectors at distance 1.0 must not merge, got %d clusters", len(clusters))
	}
}
