package crawler

import (
	"net/url"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/normalize"
	"github.com/edmiester777/search-engine/internal/tokenizer"
	"github.com/edmiester777/search-engine/pkg/canon"
)

// State names one step of a CrawlerWorker iteration's state machine:
// IDLE → CLAIMING → FETCHING → PARSING → PUBLISHING → IDLE, with edges to
// BACKOFF (no work) and FAILED (fetch/parse error).
type State int

const (
	StateIdle State = iota
	StateClaiming
	StateFetching
	StateParsing
	StatePublishing
	StateBackoff
	StateFailed
)

// buildContentDocument renders an accumulator's fields plus u's host
// decomposition into the flat document shape published to working.
// title and content are returned alongside the document so the caller can
// apply the "both non-empty" publish gate without re-deriving them.
func buildContentDocument(u url.URL, suffixes canon.SuffixSet, acc *tokenizer.Accumulator) (indexclient.Document, title string, content string) {
	subdomain, domain, tld := canon.SplitHost(u.Hostname(), suffixes)

	title = normalize.CleanupString(acc.Title())
	content = normalize.Content(acc.RawContent())

	doc := indexclient.Document{
		"id":               u.String(),
		"is_https":         u.Scheme == "https",
		"subdomain":        subdomain,
		"domain":           domain,
		"tld":              tld,
		"path":             u.Path,
		"title":            title,
		"meta_title":       normalize.CleanupString(acc.MetaTitle()),
		"meta_description": normalize.CleanupString(acc.MetaDescription()),
		"meta_keywords":    normalize.MetaKeywords(acc.MetaKeywords()),
		"content":          content,
	}

	return doc, title, content
}

// foundURLs canonicalizes every raw href the tokenizer observed against
// currentPage, rejects disallowed extensions and invalid URLs, and
// dedups by string equality into a per-iteration set, per the claim
// protocol's found_urls rule.
func foundURLs(currentPage url.URL, rawHrefs []string) []url.URL {
	seen := make(map[string]struct{}, len(rawHrefs))
	var out []url.URL

	for _, raw := range rawHrefs {
		canonical, ok := canon.Canonicalize(raw, currentPage.String())
		if !ok {
			continue
		}
		if !canon.Validate(canonical) {
			continue
		}
		parsed, err := url.Parse(canonical)
		if err != nil {
			continue
		}
		if !canon.AllowedExtension(parsed.Path) {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, *parsed)
	}

	return out
}
