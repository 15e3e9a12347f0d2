package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/models"
	"github.com/srinivasgumdelli/moat/internal/retry"
)

const hnAlgoliaURL = "https://hn.algolia.com/api/v1/search_by_date"

// HackerNewsSource searches Hacker News stories through the Algolia API,
// one query at a time, keeping stories above the configured point floor.
type HackerNewsSource struct {
	cfg     config.HackerNewsConfig
	client  *http.Client
	scraper *Scraper
	logger  *log.Logger
}

func NewHackerNewsSource(cfg config.HackerNewsConfig, scraper *Scraper, logger *log.Logger) *HackerNewsSource {
	return &HackerNewsSource{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		scraper: scraper,
		logger:  logger,
	}
}

func (s *HackerNewsSource) Name() string { return "hackernews" }

type hnSearchResponse struct {
	Hits []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		ObjectID    string `json:"objectID"`
		Author      string `json:"author"`
		Points      int    `json:"points"`
		CreatedAtIU int64  `json:"created_at_i"`
	} `json:"hits"`
}

func (s *HackerNewsSource) Fetch(ctx context.Context, topic string) ([]*models.Article, error) {
	queries := s.cfg.Queries[topic]
	if len(queries) == 0 {
		return nil, nil
	}

	var articles []*models.Article
	for _, query := range queries {
		batch, err := s.search(ctx, query, topic)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("hackernews: search %q failed: %v", query, err)
			}
			continue
		}
		articles = append(articles, batch...)
	}
	if s.logger != nil {
		s.logger.Printf("hackernews: fetched %d articles for topic %q", len(articles), topic)
	}
	return articles, nil
}

func (s *HackerNewsSource) search(ctx context.Context, query, topic string) ([]*models.Article, error) {
	data, err := retry.Do(ctx, retry.DefaultOptions(), s.logger, func(ctx context.Context) (*hnSearchResponse, error) {
		return s.searchOnce(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	var articles []*models.Article
	for _, hit := range data.Hits {
		if hit.Title == "" || hit.Points < s.cfg.MinPoints {
			continue
		}
		link := hit.URL
		if link == "" && hit.ObjectID != "" {
			link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}
		if link == "" {
			continue
		}

		sourceName := "HN"
		if hit.Author != "" {
			sourceName = "HN/" + hit.Author
		}
		content := hit.Title
		if len(content) < 200 && s.scraper != nil {
			if extracted, err := s.scraper.Extract(ctx, link); err == nil && extracted != "" {
				content = extracted
			}
		}

		var publishedAt *time.Time
		if hit.CreatedAtIU > 0 {
			t := time.Unix(hit.CreatedAtIU, 0).UTC()
			publishedAt = &t
		}
		articles = append(articles, models.NewArticle(link, hit.Title, content, sourceName, "hackernews", topic, publishedAt))
	}
	return articles, nil
}

func (s *HackerNewsSource) searchOnce(ctx context.Context, query string) (*hnSearchResponse, error) {
	base := s.cfg.BaseURL
	if base == "" {
		base = hnAlgoliaURL
	}
	params := url.Values{
		"query":       {query},
		"tags":        {"story"},
		"hitsPerPage": {strconv.Itoa(s.cfg.Limit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, retry.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: string(body), RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	var data hnSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &data, nil
}
