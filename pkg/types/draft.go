// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Report is the final deliverable: a sequence of section bodies citing
// numbered sources, plus an optional verification appendix.
type Report struct {
	Query       Query
	Intent      IntentKind
	Sections    []ReportSection
	Sources     []SearchResult
	GeneratedAt time.Time
	Metadata    map[string]any

	// Limitations, when non-empty, becomes the "## Research Limitations"
	// section. Verification, when non-nil, becomes the "## Verification
	// Report" appendix.
	Limitations   string
	Verification  *VerificationSummary
}

// ReportSection is one titled body of Markdown text in the report.
type ReportSection struct {
	Title string
	Body  string
}
