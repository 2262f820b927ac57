// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scrape implements the Scraper component: a 3-tier fallback
// cascade that converts HTML to Markdown with table preservation, backed by
// a run-scoped content-addressed single-flight cache shared with the
// Verifier. Implements spec §4.5 and §9's cache requirement.
//
// Tier cascade grounded on original_source/stages/scraper.py: primary is a
// free in-process HTML fetch+convert; fallback-1 and fallback-2 are paid
// external services (Jina-style markdown extractor, then a generic scrape
// API) used only when the primary tier fails or returns a body under 200
// bytes, per spec §4.5.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/research-engine/internal/logging"
	"github.com/pdiddy/research-engine/pkg/types"
)

const minViableBodyLen = 200

// Scraper fetches and converts URLs, caching every attempted URL (including
// ones that ultimately yielded an empty body) for the lifetime of a run.
type Scraper struct {
	client       *http.Client
	cfg          types.Config
	logger       *zap.Logger
	group        singleflight.Group
	mu           sync.RWMutex
	cache        map[string]types.ScrapedContent
	fallback1Use int
	fallback2Use int
}

// New builds a Scraper from cfg. If httpClient is nil, a client with
// cfg.ScrapeTimeout is constructed. A nil logger defaults to a no-op logger
// so callers can omit it in tests.
func New(cfg types.Config, httpClient *http.Client, logger *zap.Logger) *Scraper {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.ScrapeTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		client: httpClient,
		cfg:    cfg,
		logger: logger,
		cache:  make(map[string]types.ScrapedContent),
	}
}

// Lookup returns a previously scraped result for url without triggering a
// new fetch. Used by the Verifier to consult the cache-first per spec
// §4.14: a cache hit (even with an empty body) is returned as-is.
func (s *Scraper) Lookup(url string) (types.ScrapedContent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.cache[url]
	return content, ok
}

// ScrapeURL fetches and converts url, deduplicating concurrent callers for
// the same URL onto a single network fetch (spec §9 invariant: "for any URL
// queried concurrently, the scraper performs exactly one network fetch").
// The result, including an empty body after all tiers are exhausted, is
// cached for the rest of the run.
func (s *Scraper) ScrapeURL(ctx context.Context, url string) types.ScrapedContent {
	if cached, ok := s.Lookup(url); ok {
		return cached
	}

	result, _, _ := s.group.Do(url, func() (any, error) {
		content := s.scrapeTiers(ctx, url)
		s.mu.Lock()
		s.cache[url] = content
		s.mu.Unlock()
		return content, nil
	})
	return result.(types.ScrapedContent)
}

// ScrapeMany scrapes urls with bounded concurrency and returns the results
// in input order.
func (s *Scraper) ScrapeMany(ctx context.Context, urls []string, parallelism int) []types.ScrapedContent {
	if parallelism < 1 {
		parallelism = 1
	}
	results := make([]types.ScrapedContent, len(urls))
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, url string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.ScrapeURL(ctx, url)
		}(i, url)
	}
	wg.Wait()
	return results
}

// FallbackUsage reports how many times each paid fallback tier was used.
// The orchestrator prints these counts as progress output; they are not
// stored in report metadata.
func (s *Scraper) FallbackUsage() (fallback1, fallback2 int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback1Use, s.fallback2Use
}

func (s *Scraper) scrapeTiers(ctx context.Context, url string) types.ScrapedContent {
	if content, ok := s.scrapePrimary(ctx, url); ok && len(content.MarkdownBody) >= minViableBodyLen {
		return content
	}

	if content, ok := s.scrapeFallback1(ctx, url); ok && len(content.MarkdownBody) >= minViableBodyLen {
		s.mu.Lock()
		s.fallback1Use++
		s.mu.Unlock()
		return content
	}

	if content, ok := s.scrapeFallback2(ctx, url); ok && len(content.MarkdownBody) > 0 {
		s.mu.Lock()
		s.fallback2Use++
		s.mu.Unlock()
		return content
	}

	logging.StageError(s.logger, "scrape", url, types.ErrScrapeFailed, fmt.Errorf("all 3 tiers failed or yielded no viable body"))
	return types.ScrapedContent{
		URL:           url,
		RetrievedAt:   now(),
		ExtractorTier: types.ExtractorFallback2,
	}
}

func (s *Scraper) scrapePrimary(ctx context.Context, url string) (types.ScrapedContent, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.ScrapedContent{}, false
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return types.ScrapedContent{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.ScrapedContent{}, false
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return types.ScrapedContent{}, false
	}

	cellMax := s.cfg.TableCellMaxChars
	if !s.cfg.PreserveTables {
		cellMax = 0
	}
	body, found, converted := htmlToMarkdown(doc, cellMax)
	if !s.cfg.PreserveTables {
		found, converted = 0, 0
	}

	return types.ScrapedContent{
		URL:             url,
		Title:           titleFrom(body, url),
		MarkdownBody:    body,
		RetrievedAt:     now(),
		ExtractorTier:   types.ExtractorPrimary,
		TablesFound:     found,
		TablesConverted: converted,
	}, true
}

// scrapeFallback1 uses an external Markdown-extraction service (JS-capable)
// reached by prefixing the target URL, matching the Jina r.jina.ai shape.
func (s *Scraper) scrapeFallback1(ctx context.Context, url string) (types.ScrapedContent, bool) {
	if s.cfg.ScrapeFallback1URL == "" {
		return types.ScrapedContent{}, false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ScrapeFallback1URL+url, nil)
	if err != nil {
		return types.ScrapedContent{}, false
	}
	if s.cfg.ScrapeFallback1APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.ScrapeFallback1APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return types.ScrapedContent{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.ScrapedContent{}, false
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.ScrapedContent{}, false
	}

	body := string(data)
	return types.ScrapedContent{
		URL:           url,
		Title:         titleFrom(body, url),
		MarkdownBody:  body,
		RetrievedAt:   now(),
		ExtractorTier: types.ExtractorFallback1,
	}, true
}

type scrapeAPIRequest struct {
	URL             string `json:"url"`
	IncludeMarkdown bool   `json:"includeMarkdown"`
}

type scrapeAPIResponse struct {
	Markdown string `json:"markdown"`
	Text     string `json:"text"`
	Content  string `json:"content"`
}

// scrapeFallback2 uses a generic POST-based scrape API that returns the
// rendered page's markdown/text/content field, matching the Serper scrape
// API shape.
func (s *Scraper) scrapeFallback2(ctx context.Context, url string) (types.ScrapedContent, bool) {
	if s.cfg.ScrapeFallback2URL == "" {
		return types.ScrapedContent{}, false
	}
	payload, err := json.Marshal(scrapeAPIRequest{URL: url, IncludeMarkdown: true})
	if err != nil {
		return types.ScrapedContent{}, false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ScrapeFallback2URL, bytes.NewReader(payload))
	if err != nil {
		return types.ScrapedContent{}, false
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ScrapeFallback2APIKey != "" {
		req.Header.Set("X-API-KEY", s.cfg.ScrapeFallback2APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return types.ScrapedContent{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.ScrapedContent{}, false
	}

	var parsed scrapeAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return types.ScrapedContent{}, false
	}
	body := parsed.Markdown
	if body == "" {
		body = parsed.Text
	}
	if body == "" {
		body = parsed.Content
	}

	return types.ScrapedContent{
		URL:           url,
		Title:         titleFrom(body, url),
		MarkdownBody:  body,
		RetrievedAt:   now(),
		ExtractorTier: types.ExtractorFallback2,
	}, true
}

func titleFrom(body, url string) string {
	for _, line := range splitNonEmptyLines(body) {
		if len(line) > 100 {
			return line[:100]
		}
		return line
	}
	return url
}

func splitNonEmptyLines(body string) []string {
	var lines []string
	start := 0
	for i := 0; i <= len(body); i++ {
		if i == len(body) || body[i] == '\n' {
			line := body[start:i]
			if len(line) > 0 {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	return lines
}

// now is a seam so tests can fix RetrievedAt.
var now = func() time.Time { return time.Now().UTC() }
