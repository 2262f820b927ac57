// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SourceTier is a supplemented (non-spec) authority classification for a
// scraped source, orthogonal to ContentType. It enriches the verification
// prompt's framing; it never gates a pipeline decision.
type SourceTier string

const (
	// Tier1 covers academic and government domains.
	Tier1 SourceTier = "TIER_1"
	// Tier2 covers established media and reference sites.
	Tier2 SourceTier = "TIER_2"
	// Tier3 covers blogs and forums.
	Tier3 SourceTier = "TIER_3"
	// Tier4 is the default for unvetted sources.
	Tier4 SourceTier = "TIER_4"
)
