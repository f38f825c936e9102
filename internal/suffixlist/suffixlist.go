// Package suffixlist loads the public-suffix list CrawlerWorker and
// IndexerWorker consult to split a host into (subdomain, domain, tld).
// Each worker loads the list once at start.
package suffixlist

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/edmiester777/search-engine/pkg/canon"
	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/fileutil"
)

// DefaultSourceURL is the canonical public-suffix list source.
const DefaultSourceURL = "https://publicsuffix.org/list/effective_tld_names.dat"

// Loader fetches the public-suffix list over HTTPS and parses it into a
// canon.SuffixSet. As an enrichment over a naive every-run fetch,
// a successful fetch is cached to a local file so a restarted worker
// pool does not re-fetch the list from publicsuffix.org on every process
// start; a fetch failure falls back to that cache if present.
type Loader struct {
	SourceURL string
	CacheDir  string
	Client    *http.Client
}

// NewLoader builds a Loader pointed at sourceURL, caching the fetched list
// text under cacheDir/effective_tld_names.dat.
func NewLoader(sourceURL string, cacheDir string) *Loader {
	return &Loader{
		SourceURL: sourceURL,
		CacheDir:  cacheDir,
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (l *Loader) cachePath() string {
	return filepath.Join(l.CacheDir, "effective_tld_names.dat")
}

// Load fetches and parses the suffix list, writing a fresh copy to the
// local cache on success and reading from the cache when the fetch fails.
func (l *Loader) Load() (canon.SuffixSet, failure.ClassifiedError) {
	raw, err := l.fetch()
	if err != nil {
		cached, cacheErr := l.readCache()
		if cacheErr != nil {
			return nil, err
		}
		return canon.ParseSuffixList(cached), nil
	}

	if writeErr := l.writeCache(raw); writeErr != nil {
		return canon.ParseSuffixList(raw), nil
	}

	return canon.ParseSuffixList(raw), nil
}

func (l *Loader) fetch() (string, *SuffixListError) {
	req, err := http.NewRequest(http.MethodGet, l.SourceURL, nil)
	if err != nil {
		return "", &SuffixListError{Message: err.Error(), Retryable: false, Cause: ErrCauseRequest}
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return "", &SuffixListError{Message: err.Error(), Retryable: true, Cause: ErrCauseFetch}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &SuffixListError{
			Message:   fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseFetch,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &SuffixListError{Message: err.Error(), Retryable: true, Cause: ErrCauseFetch}
	}

	return string(body), nil
}

func (l *Loader) readCache() (string, *SuffixListError) {
	body, err := os.ReadFile(l.cachePath())
	if err != nil {
		return "", &SuffixListError{Message: err.Error(), Retryable: false, Cause: ErrCauseCache}
	}
	return string(body), nil
}

func (l *Loader) writeCache(raw string) *SuffixListError {
	if classified := fileutil.EnsureDir(l.CacheDir); classified != nil {
		return &SuffixListError{Message: classified.Error(), Retryable: false, Cause: ErrCauseCache}
	}
	if err := os.WriteFile(l.cachePath(), []byte(raw), 0644); err != nil {
		return &SuffixListError{Message: err.Error(), Retryable: false, Cause: ErrCauseCache}
	}
	return nil
}
