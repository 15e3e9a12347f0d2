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
	"strings"
	"time"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/models"
	"github.com/srinivasgumdelli/moat/internal/retry"
)

const gdeltAPIURL = "https://api.gdeltproject.org/api/v2/doc/doc"

const gdeltTimeLayout = "20060102T150405Z"

// GDELTSource pulls the last day of coverage for a topic from the GDELT
// DOC 2.0 API.
type GDELTSource struct {
	cfg     config.GDELTConfig
	client  *http.Client
	scraper *Scraper
	logger  *log.Logger
}

func NewGDELTSource(cfg config.GDELTConfig, scraper *Scraper, logger *log.Logger) *GDELTSource {
	return &GDELTSource{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		scraper: scraper,
		logger:  logger,
	}
}

func (s *GDELTSource) Name() string { return "gdelt" }

type gdeltResponse struct {
	Articles []struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		Domain   string `json:"domain"`
		SeenDate string `json:"seendate"`
	} `json:"articles"`
}

func (s *GDELTSource) Fetch(ctx context.Context, topic string) ([]*models.Article, error) {
	query := strings.Join(s.cfg.Queries[topic], " OR ")
	if query == "" {
		query = topic
	}
	limit := s.cfg.Limit
	if limit <= 0 {
		limit = 50
	}

	data, err := retry.Do(ctx, retry.DefaultOptions(), s.logger, func(ctx context.Context) (*gdeltResponse, error) {
		return s.fetchOnce(ctx, query, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("gdelt query for topic %q: %w", topic, err)
	}

	var articles []*models.Article
	for _, item := range data.Articles {
		if item.URL == "" || item.Title == "" {
			continue
		}
		var publishedAt *time.Time
		if item.SeenDate != "" {
			if t, err := time.Parse(gdeltTimeLayout, item.SeenDate); err == nil {
				u := t.UTC()
				publishedAt = &u
			}
		}
		sourceName := item.Domain
		if sourceName == "" {
			sourceName = "GDELT"
		}
		content := item.Title
		if s.scraper != nil {
			if extracted, err := s.scraper.Extract(ctx, item.URL); err == nil && extracted != "" {
				content = extracted
			}
		}
		articles = append(articles, models.NewArticle(item.URL, item.Title, content, sourceName, "gdelt", topic, publishedAt))
	}
	if s.logger != nil {
		s.logger.Printf("gdelt: fetched %d articles for topic %q", len(articles), topic)
	}
	return articles, nil
}

func (s *GDELTSource) fetchOnce(ctx context.Context, query string, limit int) (*gdeltResponse, error) {
	base := s.cfg.BaseURL
	if base == "" {
		base = gdeltAPIURL
	}
	params := url.Values{
		"query":      {query},
		"mode":       {"ArtList"},
		"maxrecords": {strconv.Itoa(limit)},
		"format":     {"json"},
		"sort":       {"DateDesc"},
		"timespan":   {"24h"},
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

	var data gdeltResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &data, nil
}
