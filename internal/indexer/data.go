package indexer

import (
	"context"
	"net/url"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/normalize"
	"github.com/edmiester777/search-engine/internal/tokenizer"
	"github.com/edmiester777/search-engine/pkg/canon"
)

/*
IndexerWorker is the content-only sibling of CrawlerWorker: it reads
already-fetched, compressed page bodies out of an external cache instead
of performing HTTP, then runs the same tokenize → normalize → publish
pipeline CrawlerWorker's PARSING/PUBLISHING states do.
*/

// CachedPage is one page body read from the cache, keyed by the URL it
// was fetched from.
type CachedPage struct {
	PathID  string
	URL     url.URL
	Deflate []byte // zlib-compressed body, max compression level at write time
}

// CachedPageSource abstracts the external key-value procedure the
// original implementation called GET_CACHED_PAGE: it returns one
// available cached page, or ok=false if none is currently available (the
// caller sleeps 10s and tries again).
type CachedPageSource interface {
	Next(ctx context.Context) (CachedPage, bool, error)
}

// buildContentDocument renders an accumulator's fields plus u's host
// decomposition into the same flat content-document shape CrawlerWorker
// publishes, minus last_update_time (the indexer never touches frontier
// claim state).
func buildContentDocument(u url.URL, suffixes canon.SuffixSet, acc *tokenizer.Accumulator) (indexclient.Document, string, string) {
	subdomain, domain, tld := canon.SplitHost(u.Hostname(), suffixes)

	title := normalize.CleanupString(acc.Title())
	content := normalize.Content(acc.RawContent())

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
