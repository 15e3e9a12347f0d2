package process

import (
	"context"
	"fmt"
	"math"

	"github.com/srinivasgumdelli/moat/internal/models"
)

// Embedder produces one fixed-length vector per input text, batched in a
// single call.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// embeddingTextLimit bounds how much body text feeds the embedding.
const embeddingTextLimit = 500

// EmbeddingText is the canonical text embedded for an article: its title
// plus a bounded prefix of its body.
func EmbeddingText(a *models.Article) string {
	content := a.Content
	if len(content) > embeddingTextLimit {
		content = content[:embeddingTextLimit]
	}
	return a.Title + " " + content
}

// EnsureEmbeddings fills in missing embeddings for the given articles using
// at most one batched provider call, consulting the cache first when one is
// configured.
func EnsureEmbeddings(ctx context.Context, embedder Embedder, cache *EmbeddingCache, articles []*models.Article) error {
	var missing []*models.Article
	for _, a := range articles {
		if len(a.Embedding) > 0 {
			continue
		}
		if cache != nil {
			if vec, ok := cache.Get(ctx, a.ContentHash); ok {
				a.Embedding = vec
				continue
			}
		}
		missing = append(missing, a)
	}
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, a := range missing {
		texts[i] = EmbeddingText(a)
	}
	vecs, err := embedder.EmbedMany(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d articles: %w", len(missing), err)
	}
	if len(vecs) != len(missing) {
		return fmt.Errorf("embedding count mismatch: asked %d, got %d", len(missing), len(vecs))
	}
	for i, a := range missing {
		a.Embedding = vecs[i]
		if cache != nil {
			cache.Put(ctx, a.ContentHash, vecs[i])
		}
	}
	return nil
}

// CosineSimilarity computes cosine similarity between two vectors. Any
// all-zero vector yields 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
