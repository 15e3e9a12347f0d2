package process

import (
	"context"
	"fmt"
	"log"

	"github.com/srinivasgumdelli/moat/internal/models"
)

// Deduper removes exact and near duplicates from a fetched batch.
// Exact duplicates are matched on content fingerprint; near duplicates on
// cosine similarity of embeddings. In both phases the earlier article wins.
type Deduper struct {
	threshold float64
	embedder  Embedder
	cache     *EmbeddingCache
	logger    *log.Logger
}

func NewDeduper(threshold float64, embedder Embedder, cache *EmbeddingCache, logger *log.Logger) *Deduper {
	if threshold <= 0 {
		threshold = 0.85
	}
	return &Deduper{threshold: threshold, embedder: embedder, cache: cache, logger: logger}
}

// Dedup returns the surviving articles in their original relative order.
func (d *Deduper) Dedup(ctx context.Context, articles []*models.Article) ([]*models.Article, error) {
	if len(articles) == 0 {
		return articles, nil
	}

	// Phase 1: exact fingerprint match.
	seen := make(map[string]struct{}, len(articles))
	unique := make([]*models.Article, 0, len(articles))
	for _, a := range articles {
		if a.ContentHash == "" {
			a.ContentHash = models.Fingerprint(a.Content)
		}
		if _, ok := seen[a.ContentHash]; ok {
			continue
		}
		seen[a.ContentHash] = struct{}{}
		unique = append(unique, a)
	}
	exactDropped := len(articles) - len(unique)

	if len(unique) < 2 {
		if d.logger != nil {
			d.logger.Printf("dedup: %d -> %d (exact %d, near 0)", len(articles), len(unique), exactDropped)
		}
		return unique, nil
	}

	// Phase 2: pairwise cosine similarity.
	if err := EnsureEmbeddings(ctx, d.embedder, d.cache, unique); err != nil {
		return nil, fmt.Errorf("dedup embeddings: %w", err)
	}

	dropped := make([]bool, len(unique))
	for i := 0; i < len(unique); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(unique); j++ {
			if dropped[j] {
				continue
			}
			if CosineSimilarity(unique[i].Embedding, unique[j].Embedding) >= d.threshold {
				dropped[j] = true
			}
		}
	}

	kept := make([]*models.Article, 0, len(unique))
	for i, a := range unique {
		if !dropped[i] {
			kept = append(kept, a)
		}
	}
	if d.logger != nil {
		d.logger.Printf("dedup: %d -> %d (exact %d, near %d)", len(articles), len(kept), exactDropped, len(unique)-len(kept))
	}
	return kept, nil
}
