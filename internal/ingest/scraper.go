package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/srinivasgumdelli/moat/internal/retry"
)

const (
	scraperMaxChars = 12000
	scraperBodyCap  = 2 << 20
)

// Scraper pulls main article text out of a page. Readability extraction runs
// first; when it yields nothing usable the page's description meta tags are
// used instead.
type Scraper struct {
	client    *http.Client
	userAgent string
	logger    *log.Logger
	maxChars  int
}

func NewScraper(timeout time.Duration, userAgent string, logger *log.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if userAgent == "" {
		userAgent = "moat/1.0 (+https://github.com/srinivasgumdelli/moat)"
	}
	return &Scraper{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
		maxChars:  scraperMaxChars,
	}
}

// Extract returns the main text of the page at link, or "" when nothing
// could be extracted. Errors are reserved for fetch failures.
func (s *Scraper) Extract(ctx context.Context, link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	html, err := retry.Do(ctx, retry.Options{MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}, s.logger,
		func(ctx context.Context) (string, error) {
			return s.fetchHTML(ctx, link)
		})
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return clamp(text, s.maxChars), nil
		}
	}
	return clamp(metaDescription(html), s.maxChars), nil
}

func (s *Scraper) fetchHTML(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", retry.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &retry.StatusError{Code: resp.StatusCode, RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, scraperBodyCap))
	if err != nil {
		return "", retry.Transient(err)
	}
	return string(body), nil
}

// metaDescription falls back to og:description or the description meta tag.
func metaDescription(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func clamp(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
