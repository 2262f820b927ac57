// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ContextPackage is the Context Assembler's output: the summaries selected
// for the report, their cosine scores mapped into [0,1], and a count of how
// many candidate summaries were excluded.
type ContextPackage struct {
	SelectedSummaries []Summary
	Scores            map[string]float64 // keyed by Summary.SourceURL
	ExcludedCount     int
}
