// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-engine/pkg/types"
)

func TestClassifyContentType(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want types.ContentType
	}{
		{"research exact domain", "https://arxiv.org/abs/1234.5678", types.ContentResearch},
		{"research subdomain", "https://pubmed.ncbi.nlm.nih.gov/123", types.ContentResearch},
		{"code domain", "https://github.com/foo/bar", types.ContentCode},
		{"news domain", "https://www.bbc.com/news/world", types.ContentNews},
		{"docs host prefix", "https://docs.python.org/3/library", types.ContentDocumentation},
		{"docs path segment", "https://example.com/en/reference/api", types.ContentDocumentation},
		{"general fallback", "https://example.com/blog/post", types.ContentGeneral},
		{"substring is not a match", "https://notarxiv.org/foo", types.ContentGeneral},
		{"unparseable url", "://bad-url", types.ContentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.url))
		})
	}
}

func TestTierClassification(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want types.SourceTier
	}{
		{"gov tld", "https://www.cdc.gov/flu", types.Tier1},
		{"edu tld", "https://stanford.edu/paper", types.Tier1},
		{"tier1 domain", "https://www.nature.com/articles/x", types.Tier1},
		{"tier2 news domain", "https://www.reuters.com/world", types.Tier2},
		{"tier2 docs prefix", "https://developer.mozilla.org/en-US/docs", types.Tier2},
		{"tier3 wiki", "https://en.wikipedia.org/wiki/Go", types.Tier3},
		{"unknown falls to tier4", "https://some-random-blog.test/post", types.Tier4},
		{"unparseable falls to tier4", "://bad-url", types.Tier4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Tier(tt.url))
		})
	}
}

func TestGovTLDWinsOverLowerTierDomainList(t *testing.T) {
	require.Equal(t, types.Tier1, Tier("https://clinicaltrials.gov/study/1"))
}
