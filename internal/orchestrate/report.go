// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/research-engine/pkg/types"
)

// SaveReport writes report to "<output_dir>/report_YYYYMMDD_HHMMSS.md",
// matching the filename and section layout of
// original_source/pipeline.py's _save_report, and returns the path written.
func SaveReport(report types.Report, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	filename := fmt.Sprintf("report_%s.md", report.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	var sb strings.Builder
	sb.WriteString("# Research Report\n\n")
	fmt.Fprintf(&sb, "**Query:** %s\n\n", report.Query.Text)
	fmt.Fprintf(&sb, "**Intent:** %s\n\n", orUnknown(string(report.Intent)))
	fmt.Fprintf(&sb, "**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("---\n\n")

	for _, section := range report.Sections {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", section.Title, section.Body)
	}

	if len(report.Sources) > 0 {
		sb.WriteString("---\n\n## Sources\n\n")
		for i, src := range report.Sources {
			fmt.Fprintf(&sb, "**[Source %d]** %s\n", i+1, orUnknown(src.Title))
			fmt.Fprintf(&sb, "- URL: %s\n\n", src.URL)
		}
	}

	if report.Limitations != "" {
		sb.WriteString("---\n\n## Research Limitations\n\n")
		sb.WriteString(report.Limitations)
		sb.WriteString("\n")
	}

	if report.Verification != nil {
		writeVerificationAppendix(&sb, report.Verification)
	}

	sb.WriteString("\n---\n\n**Metadata:**\n\n")
	for key, value := range report.Metadata {
		fmt.Fprintf(&sb, "- %s: %v\n", key, value)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing report file: %w", err)
	}
	return path, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func writeVerificationAppendix(sb *strings.Builder, summary *types.VerificationSummary) {
	sb.WriteString("---\n\n## Verification Report\n\n")
	fmt.Fprintf(sb, "Supported: %d, Partial: %d, Unsupported: %d, Contradicted: %d\n\n",
		summary.SupportedCount, summary.PartialCount, summary.UnsupportedCount, summary.ContradictedCount)

	if len(summary.Flagged) == 0 {
		sb.WriteString("No claims were flagged for review.\n")
		return
	}

	fmt.Fprintf(sb, "%d claim(s) flagged for review (confidence below %.2f or an adverse verdict):\n\n", len(summary.Flagged), summary.Threshold)
	for _, f := range summary.Flagged {
		fmt.Fprintf(sb, "- **%s** (%s, confidence %.2f): %s\n", f.ClaimText, f.Verdict, f.Confidence, f.Reasoning)
	}
}
