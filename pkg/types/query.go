// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures exchanged between pipeline
// stages: query, plan, search result, scraped content, chunk, summary,
// context package, reflection result, report, and verification result.
package types

// IntentKind is the closed set of query intents produced by the intent
// classifier and consumed by the planner and search-kind mapping.
type IntentKind string

const (
	IntentInformational IntentKind = "informational"
	IntentNews          IntentKind = "news"
	IntentCode          IntentKind = "code"
	IntentResearch      IntentKind = "research"
	IntentComparative   IntentKind = "comparative"
	IntentTutorial      IntentKind = "tutorial"
	IntentGeneral       IntentKind = "general"
)

// Valid reports whether k is one of the seven recognized intents.
func (k IntentKind) Valid() bool {
	switch k {
	case IntentInformational, IntentNews, IntentCode, IntentResearch,
		IntentComparative, IntentTutorial, IntentGeneral:
		return true
	}
	return false
}

// Query is the user's natural-language question together with its
// classified intent. Immutable once intent is set.
type Query struct {
	Text   string
	Intent IntentKind
}

// SearchKind selects which native endpoint a Search Provider should target.
type SearchKind string

const (
	SearchWeb     SearchKind = "web"
	SearchNews    SearchKind = "news"
	SearchScholar SearchKind = "scholar"
)

// KindForIntent implements the kind-selection rule from spec §4.4:
// news -> news, research -> scholar, else -> web.
func KindForIntent(intent IntentKind) SearchKind {
	switch intent {
	case IntentNews:
		return SearchNews
	case IntentResearch:
		return SearchScholar
	default:
		return SearchWeb
	}
}
