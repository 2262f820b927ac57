// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// SearchResult is one result returned by a Search Provider. Rank starts at 1
// and is contiguous within a single provider response.
type SearchResult struct {
	URL         string
	Title       string
	Snippet     string
	Rank        int
	ProviderTag string
}

// CanonicalURL lowercases the scheme and host, trims a trailing slash from
// the path, and drops any fragment, per the SearchResult invariant. It is
// intentionally permissive of malformed input: on parse failure it falls
// back to a best-effort string normalization rather than erroring, since
// deduplication must never abort a search stage.
func CanonicalURL(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	schemeSep := strings.Index(s, "://")
	if schemeSep < 0 {
		return strings.TrimSuffix(strings.ToLower(s), "/")
	}
	scheme := strings.ToLower(s[:schemeSep])
	rest := s[schemeSep+3:]
	slash := strings.IndexByte(rest, '/')
	host := rest
	path := ""
	if slash >= 0 {
		host = rest[:slash]
		path = rest[slash:]
	}
	host = strings.ToLower(host)
	path = strings.TrimSuffix(path, "/")
	return scheme + "://" + host + path
}

// Host returns the lowercased host portion of a canonical or raw URL, used
// by exclude-domain filtering.
func Host(rawOrCanonical string) string {
	s := rawOrCanonical
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
