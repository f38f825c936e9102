package frontier

/*
 Frontier - the queue of URLs not yet crawled, and the claim protocol that
 hands batches of them to workers without two workers ever claiming the
 same URL in the same 7-day window.
*/

import (
	"net/url"
	"strconv"
	"time"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/pkg/canon"
)

// CrawlCooldown is the crawl politeness window scoped to the frontier: a
// URL already claimed within this window is not eligible for reclaim.
const CrawlCooldown = 7 * 24 * time.Hour

// Entry is one frontier record: a discovered URL plus its decomposed host
// fields and the last time it was claimed.
type Entry struct {
	URL            url.URL
	IsHTTPS        bool
	Subdomain      string
	Domain         string
	TLD            string
	Path           string
	LastUpdateTime time.Time
}

// NewEntry builds a frontier Entry from a canonical URL, decomposing its
// host against suffixes.
func NewEntry(u url.URL, suffixes canon.SuffixSet, lastUpdateTime time.Time) Entry {
	subdomain, domain, tld := canon.SplitHost(u.Hostname(), suffixes)
	return Entry{
		URL:            u,
		IsHTTPS:        u.Scheme == "https",
		Subdomain:      subdomain,
		Domain:         domain,
		TLD:            tld,
		Path:           u.Path,
		LastUpdateTime: lastUpdateTime,
	}
}

// toDocument renders e into the flat field map the working collection
// stores, keyed by the canonical URL string.
func (e Entry) toDocument() indexclient.Document {
	return indexclient.Document{
		"id":               e.URL.String(),
		"is_https":         e.IsHTTPS,
		"subdomain":        e.Subdomain,
		"domain":           e.Domain,
		"tld":              e.TLD,
		"path":             e.Path,
		"last_update_time": e.LastUpdateTime.Unix(),
	}
}

// entryFromDocument reconstructs the claimed URL from a working-collection
// document's id field. Per the claim protocol, the id itself is the
// scheme-qualified URL, so this is a parse, not a field-by-field rebuild.
func entryFromDocument(doc indexclient.Document) (url.URL, bool) {
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return url.URL{}, false
	}
	u, err := url.Parse(id)
	if err != nil {
		return url.URL{}, false
	}
	return *u, true
}

func claimFilter(now time.Time) string {
	cutoff := now.Add(-CrawlCooldown)
	return "last_update_time:[0 TO " + strconv.FormatInt(cutoff.Unix(), 10) + "]"
}
