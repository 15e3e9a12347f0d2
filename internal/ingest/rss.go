package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/models"
	"github.com/srinivasgumdelli/moat/internal/retry"
)

// RSSSource fetches configured feeds per topic. Both RSS 2.0 and Atom
// documents are accepted.
type RSSSource struct {
	cfg     config.RSSConfig
	client  *http.Client
	scraper *Scraper
	logger  *log.Logger
}

func NewRSSSource(cfg config.RSSConfig, scraper *Scraper, logger *log.Logger) *RSSSource {
	return &RSSSource{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		scraper: scraper,
		logger:  logger,
	}
}

func (s *RSSSource) Name() string { return "rss" }

func (s *RSSSource) Fetch(ctx context.Context, topic string) ([]*models.Article, error) {
	feeds := s.cfg.Feeds[topic]
	if len(feeds) == 0 {
		return nil, nil
	}

	var articles []*models.Article
	for _, feed := range feeds {
		entries, err := s.fetchFeed(ctx, feed, topic)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("rss: feed %q failed: %v", feed.URL, err)
			}
			continue
		}
		articles = append(articles, entries...)
	}
	if s.logger != nil {
		s.logger.Printf("rss: fetched %d articles for topic %q", len(articles), topic)
	}
	return articles, nil
}

func (s *RSSSource) fetchFeed(ctx context.Context, feed config.RSSFeed, topic string) ([]*models.Article, error) {
	body, err := retry.Do(ctx, retry.DefaultOptions(), s.logger, func(ctx context.Context) ([]byte, error) {
		return s.fetchOnce(ctx, feed.URL)
	})
	if err != nil {
		return nil, err
	}

	entries, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	sourceName := feed.Name
	if sourceName == "" {
		sourceName = feed.URL
	}

	var articles []*models.Article
	for _, e := range entries {
		if e.link == "" || e.title == "" {
			continue
		}
		content := e.summary
		if len(content) < 200 && s.scraper != nil {
			if extracted, err := s.scraper.Extract(ctx, e.link); err == nil && extracted != "" {
				content = extracted
			}
		}
		if content == "" {
			content = e.title
		}
		articles = append(articles, models.NewArticle(e.link, e.title, content, sourceName, "rss", topic, e.published))
	}
	return articles, nil
}

func (s *RSSSource) fetchOnce(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, retry.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.StatusError{Code: resp.StatusCode, RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

type feedEntry struct {
	title     string
	link      string
	summary   string
	published *time.Time
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDocument struct {
	XMLName xml.Name `xml:"feed"`
	Entries []struct {
		Title   string `xml:"title"`
		Links   []atomLink `xml:"link"`
		Summary string `xml:"summary"`
		Content string `xml:"content"`
		Updated string `xml:"updated"`
	} `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func parseFeed(body []byte) ([]feedEntry, error) {
	var rss rssDocument
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		entries := make([]feedEntry, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			entries = append(entries, feedEntry{
				title:     strings.TrimSpace(item.Title),
				link:      strings.TrimSpace(item.Link),
				summary:   strings.TrimSpace(item.Description),
				published: parseFeedTime(item.PubDate),
			})
		}
		return entries, nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		entries := make([]feedEntry, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			summary := e.Summary
			if summary == "" {
				summary = e.Content
			}
			entries = append(entries, feedEntry{
				title:     strings.TrimSpace(e.Title),
				link:      atomHref(e.Links),
				summary:   strings.TrimSpace(summary),
				published: parseFeedTime(e.Updated),
			})
		}
		return entries, nil
	}
	return nil, fmt.Errorf("unrecognized feed format")
}

func atomHref(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z",
}

func parseFeedTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
