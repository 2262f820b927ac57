// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SearchQuery is one query the planner or reflector wants executed, with a
// stated purpose and a priority from 1 (highest) to 5 (lowest).
type SearchQuery struct {
	Text     string
	Purpose  string
	Priority int
}

// ResearchPlan is the planner's output: the sections the report should cover
// and the initial search queries to gather material for them.
type ResearchPlan struct {
	Query         Query
	Sections      []string
	SearchQueries []SearchQuery
	Rationale     string
}
