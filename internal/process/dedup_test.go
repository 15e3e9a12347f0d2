package process

import (
	"context"
	"fmt"
	"testing"

	"github.com/srinivasgumdelli/moat/internal/models"
)

// stubEmbedder maps article text to fixed vectors, keyed by title prefix.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, ok := s.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no stub vector for %q", t)
		}
		out[i] = vec
	}
	return out, nil
}

func mkArticle(title, content string) *models.Article {
	return models.NewArticle("https://example.com/"+title, title, content, "test", "test", "topic", nil)
}

func TestDedupExactDuplicates(t *testing.T) {
	a := mkArticle("a", "same body")
	b := mkArticle("b", "unique one")
	c := mkArticle("c", "same body")

	emb := &stubEmbedder{vectors: map[string][]float32{
		EmbeddingText(a): {1, 0, 0},
		EmbeddingText(b): {0, 1, 0},
	}}
	d := NewDeduper(0.85, emb, nil, nil)

	out, err := d.Dedup(context.Background(), []*models.Article{a, b, c})
	if err != nil {
		t.Fatalf("dedup: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	if out[0] != a || out[1] != b {
		t.Fatalf("first occurrence should survive in order, got %v %v", out[0].Title, out[1].Title)
	}
}

func TestDedupNearDuplicates(t *testing.T) {
	a := mkArticle("a", "body a")
	b := mkArticle("b", "body b")
	c := mkArticle("c", "body c")

	// a and c nearly identical, b orthogonal.
	emb := &stubEmbedder{vectors: map[string][]float32{
		EmbeddingText(a): {1, 0, 0},
		EmbeddingText(b): {0, 1, 0},
		EmbeddingText(c): {0.99, 0.01, 0},
	}}
	d := NewDeduper(0.85, emb, nil, nil)

	out, err := d.Dedup(context.Background(), []*models.Article{a, b, c})
	if err != nil {
		t.Fatalf("dedup: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	if out[0] != a || out[1] != b {
		t.Fatalf("later near-duplicate should drop, got %v %v", out[0].Title, out[1].Title)
	}
}

func TestDedupZeroVectorNeverMatches(t *testing.T) {
	a := mkArticle("a", "body a")
	b := mkArticle("b", "body b")

	emb := &stubEmbedder{vectors: map[string][]float32{
		EmbeddingText(a): {0, 0, 0},
		EmbeddingText(b): {0, 0, 0},
	}}
	d := NewDeduper(0.85, emb, nil, nil)

	out, err := d.Dedup(context.Background(), []*models.Article{a, b})
	if err != nil {
		t.Fatalf("dedup: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("zero vectors must not be treated as similar, got %d survivors", len(out))
	}
}

func TestDedupSingleArticleSkipsEmbedding(t *testing.T) {
	a := mkArticle("a", "body a")
	emb := &stubEmbedder{vectors: map[string][]float32{}}
	d := NewDeduper(0.85, emb, nil, nil)

	out, err := d.Dedup(context.Background(), []*models.Article{a})
	if err != nil {
		t.Fatalf("dedup: %v", err)
	}
	if len(out) != 1 || emb.calls != 0 {
		t.Fatalf("single article should pass through without embedding, survivors=%d calls=%d", len(out), emb.calls)
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{nil, []float32{1, 0}, 0},
		{[]float32{1, 0}, []float32{1}, 0},
	}
	for i, c := range cases {
		got := CosineSimilarity(c.a, c.b)
		if got < c.want-1e-9 || got > c.want+1e-9 {
			t.Fatalf("case %d: got %v want %v", i, got, c.want)
		}
	}
}
