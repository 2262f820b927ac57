// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify implements the Content Classifier component: pure,
// stateless URL heuristics that assign a types.ContentType (for summarizer
// model routing) and a types.SourceTier (for verification confidence
// framing). Implements spec §4.6 and the SUPPLEMENTED source-tier concept.
// Grounded on original_source's stages/content_detector.py; translated to
// Go idiom rather than ported line for line.
package classify

import (
	"net/url"
	"strings"

	"github.com/pdiddy/research-engine/pkg/types"
)

var researchDomains = domainSet(
	"arxiv.org", "scholar.google.com", "plos.org", "nature.com", "science.org",
	"sciencedirect.com", "springer.com", "ieee.org", "acm.org",
	"pubmed.ncbi.nlm.nih.gov", "nih.gov", "doi.org", "jstor.org",
	"researchgate.net", "biorxiv.org", "medrxiv.org",
)

var codeDomains = domainSet(
	"github.com", "gitlab.com", "stackoverflow.com", "stackexchange.com",
	"bitbucket.org", "codepen.io", "repl.it", "codesandbox.io", "glitch.com",
	"pypi.org", "npmjs.com", "crates.io", "packagist.org", "rubygems.org",
	"maven.org", "nuget.org",
)

var newsDomains = domainSet(
	"nytimes.com", "apnews.com", "reuters.com", "bbc.com", "cnn.com",
	"theguardian.com", "washingtonpost.com", "wsj.com", "bloomberg.com",
	"ft.com", "npr.org", "axios.com", "politico.com", "techcrunch.com",
	"theverge.com", "wired.com", "arstechnica.com", "forbes.com",
	"businessinsider.com",
)

var docsHostPrefixes = []string{"docs.", "developer.", "dev.", "api."}
var docsPathSegments = domainSet("documentation", "reference", "manual", "wiki")

// Classify detects a URL's content type from its host and path. An
// unparseable URL or one with no host yields ContentGeneral.
func Classify(rawURL string) types.ContentType {
	host, path := hostAndPath(rawURL)
	if host == "" {
		return types.ContentGeneral
	}

	switch {
	case matchDomain(host, researchDomains):
		return types.ContentResearch
	case matchDomain(host, codeDomains):
		return types.ContentCode
	case matchDomain(host, newsDomains):
		return types.ContentNews
	}

	for _, prefix := range docsHostPrefixes {
		if strings.HasPrefix(host, prefix) {
			return types.ContentDocumentation
		}
	}
	for _, segment := range pathSegments(path) {
		if _, ok := docsPathSegments[segment]; ok {
			return types.ContentDocumentation
		}
	}
	return types.ContentGeneral
}

var tier1Domains = domainSet(
	"nature.com", "science.org", "sciencedirect.com", "springer.com", "ieee.org",
	"acm.org", "pubmed.ncbi.nlm.nih.gov", "nih.gov", "doi.org", "jstor.org",
	"plos.org", "biorxiv.org", "medrxiv.org", "nejm.org", "thelancet.com",
	"bmj.com", "cell.com", "pnas.org", "wiley.com", "oxfordjournals.org",
	"academic.oup.com", "annualreviews.org", "jamanetwork.com", "acc.org",
	"ahajournals.org", "clinicaltrials.gov", "cdc.gov", "fda.gov", "who.int",
	"europa.eu", "whitehouse.gov", "congress.gov", "sec.gov", "census.gov",
	"bls.gov", "nist.gov", "ema.europa.eu",
)

var tier1TLDs = []string{".gov", ".edu", ".mil"}

var tier2Domains = domainSet(
	"nytimes.com", "apnews.com", "reuters.com", "bbc.com", "bbc.co.uk",
	"washingtonpost.com", "wsj.com", "bloomberg.com", "ft.com", "npr.org",
	"economist.com", "cnn.com", "theguardian.com", "techcrunch.com",
	"theverge.com", "wired.com", "arstechnica.com", "forbes.com",
	"docs.python.org", "docs.microsoft.com", "learn.microsoft.com",
	"developer.apple.com", "developer.mozilla.org", "cloud.google.com",
	"aws.amazon.com", "arxiv.org", "researchgate.net", "scholar.google.com",
	"medscape.com", "statnews.com", "fiercepharma.com",
)

var tier2HostPrefixes = []string{"docs.", "developer.", "dev.", "api."}

var tier3Domains = domainSet(
	"wikipedia.org", "en.wikipedia.org", "reddit.com", "stackoverflow.com",
	"stackexchange.com", "medium.com", "quora.com", "github.com", "gitlab.com",
	"dev.to", "hashnode.dev", "substack.com", "wordpress.com", "blogspot.com",
	"fandom.com", "healthline.com", "webmd.com", "verywellhealth.com",
)

// Tier classifies a source URL into an authority tier. Ordering matters:
// institutional TLDs and Tier 1 domains are checked before Tier 2/3, so a
// .gov host on a domain that also appears in a lower tier's list still
// resolves to Tier 1. An unparseable URL or missing host yields Tier4.
func Tier(rawURL string) types.SourceTier {
	host, _ := hostAndPath(rawURL)
	if host == "" {
		return types.Tier4
	}

	for _, tld := range tier1TLDs {
		if strings.HasSuffix(host, tld) {
			return types.Tier1
		}
	}
	switch {
	case matchDomain(host, tier1Domains):
		return types.Tier1
	case matchDomain(host, tier2Domains):
		return types.Tier2
	}
	for _, prefix := range tier2HostPrefixes {
		if strings.HasPrefix(host, prefix) {
			return types.Tier2
		}
	}
	if matchDomain(host, tier3Domains) {
		return types.Tier3
	}
	return types.Tier4
}

func hostAndPath(rawURL string) (host, path string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	return strings.ToLower(parsed.Hostname()), strings.ToLower(parsed.Path)
}

func pathSegments(path string) []string {
	var segments []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func matchDomain(host string, domains map[string]struct{}) bool {
	if _, ok := domains[host]; ok {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func domainSet(domains ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}
