// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ReflectionResult is the Reflector's verdict on whether the accumulated
// summaries adequately cover the plan's sections.
type ReflectionResult struct {
	Complete          bool
	Gaps              []string
	AdditionalQueries []SearchQuery
	Rationale         string
}
