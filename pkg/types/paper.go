// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ExtractorTier identifies which scraper tier produced a ScrapedContent.
type ExtractorTier string

const (
	ExtractorPrimary   ExtractorTier = "primary"
	ExtractorFallback1 ExtractorTier = "fallback1"
	ExtractorFallback2 ExtractorTier = "fallback2"
)

// ScrapedContent is the Markdown rendering of one fetched URL. An empty
// MarkdownBody is a permitted value; downstream stages must treat it as
// "unavailable" rather than erroring.
type ScrapedContent struct {
	URL             string
	Title           string
	MarkdownBody    string
	RetrievedAt     time.Time
	ExtractorTier   ExtractorTier
	TablesFound     int
	TablesConverted int
}

// Empty reports whether the scrape yielded no usable body.
func (s ScrapedContent) Empty() bool {
	return len(s.MarkdownBody) == 0
}
