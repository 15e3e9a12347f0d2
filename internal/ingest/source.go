package ingest

import (
	"context"

	"github.com/srinivasgumdelli/moat/internal/models"
)

// Source fetches candidate articles for one topic. Implementations log and
// swallow per-item failures; a returned error means the whole source is
// unusable for that topic.
type Source interface {
	Name() string
	Fetch(ctx context.Context, topic string) ([]*models.Article, error)
}
