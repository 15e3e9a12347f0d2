package process

import (
	"context"
	"fmt"
	"log"

	"github.com/srinivasgumdelli/moat/internal/models"
)

// Clusterer groups related articles by agglomerative clustering with average
// linkage over cosine distance. Merging stops once the closest pair of
// clusters is farther apart than the distance threshold.
type Clusterer struct {
	threshold float64
	embedder  Embedder
	cache     *EmbeddingCache
	logger    *log.Logger
}

func NewClusterer(threshold float64, embedder Embedder, cache *EmbeddingCache, logger *log.Logger) *Clusterer {
	if threshold <= 0 {
		threshold = 0.6
	}
	return &Clusterer{threshold: threshold, embedder: embedder, cache: cache, logger: logger}
}

// Cluster partitions a single topic's articles into clusters and returns them
// with placeholder labels. Fewer than two articles yields one singleton
// cluster per article.
func (c *Clusterer) Cluster(ctx context.Context, articles []*models.Article, topic string, runID int64) ([]*models.Cluster, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	if len(articles) < 2 {
		return c.build([][]int{{0}}, articles, topic, runID), nil
	}

	if err := EnsureEmbeddings(ctx, c.embedder, c.cache, articles); err != nil {
		return nil, fmt.Errorf("cluster embeddings: %w", err)
	}

	// Pairwise cosine distances between articles.
	n := len(articles)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := 1 - CosineSimilarity(articles[i].Embedding, articles[j].Embedding)
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	// Each article starts in its own cluster; repeatedly merge the closest
	// pair by average linkage until no pair is within the threshold.
	groups := make([][]int, n)
	for i := range groups {
		groups[i] = []int{i}
	}
	for len(groups) > 1 {
		bestA, bestB := -1, -1
		bestDist := c.threshold
		for a := 0; a < len(groups); a++ {
			for b := a + 1; b < len(groups); b++ {
				d := averageLinkage(dist, groups[a], groups[b])
				if d <= bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		if bestA < 0 {
			break
		}
		groups[bestA] = append(groups[bestA], groups[bestB]...)
		groups = append(groups[:bestB], groups[bestB+1:]...)
	}

	clusters := c.build(groups, articles, topic, runID)
	if c.logger != nil {
		c.logger.Printf("cluster: topic %q, %d articles -> %d clusters", topic, n, len(clusters))
	}
	return clusters, nil
}

func averageLinkage(dist [][]float64, a, b []int) float64 {
	var sum float64
	for _, i := range a {
		for _, j := range b {
			sum += dist[i][j]
		}
	}
	return sum / float64(len(a)*len(b))
}

// build materializes clusters in order of each group's earliest article so
// output order tracks input order.
func (c *Clusterer) build(groups [][]int, articles []*models.Article, topic string, runID int64) []*models.Cluster {
	for _, g := range groups {
		for i := 1; i < len(g); i++ {
			for j := i; j > 0 && g[j] < g[j-1]; j-- {
				g[j], g[j-1] = g[j-1], g[j]
			}
		}
	}
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && groups[j][0] < groups[j-1][0]; j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}

	clusters := make([]*models.Cluster, 0, len(groups))
	for i, g := range groups {
		members := make([]*models.Article, 0, len(g))
		for _, idx := range g {
			members = append(members, articles[idx])
		}
		clusters = append(clusters, &models.Cluster{
			Topic:        topic,
			Label:        fmt.Sprintf("Cluster %d", i+1),
			ArticleCount: len(members),
			RunID:        runID,
			Articles:     members,
		})
	}
	return clusters
}
