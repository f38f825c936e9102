package assets_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edmiester777/search-engine/internal/assets"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/retry"
	"github.com/edmiester777/search-engine/pkg/timeutil"
)

type noopSink struct{}

func (noopSink) RecordFetch(metadata.FetchEvent)     {}
func (noopSink) RecordClaim(metadata.ClaimEvent)     {}
func (noopSink) RecordPublish(metadata.PublishEvent) {}
func (noopSink) RecordLock(metadata.LockEvent)       {}
func (noopSink) RecordError(metadata.ErrorRecord)    {}
func (noopSink) Crawling(string)                     {}

var _ metadata.Sink = noopSink{}

func testRetryParam() retry.RetryParam {
	return retry.NewRetryParam(0, 0, 1, 1, timeutil.NewBackoffParam(0, 1, 0))
}

func TestSink_DisabledIsNoop(t *testing.T) {
	dir := t.TempDir()
	s := assets.NewSink(false, dir, "ua", time.Second, testRetryParam(), noopSink{})
	s.Process(context.Background(), url.URL{Scheme: "https", Host: "example.com"}, []string{"/logo.png"})

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no writes when disabled, got %d entries", len(entries))
	}
}

func TestSink_DownloadsAndDeduplicatesByContentHash(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("same-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := assets.NewSink(true, dir, "ua", time.Second, testRetryParam(), noopSink{})

	pageURL, _ := url.Parse(srv.URL + "/page")
	s.Process(context.Background(), *pageURL, []string{srv.URL + "/a.png", srv.URL + "/b.png"})

	if requests != 2 {
		t.Fatalf("expected 2 fetches (one per distinct URL), got %d", requests)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatalf("reading images dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected identical content to dedupe to 1 file, got %d", len(entries))
	}
}

func TestSink_MissingAssetIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := assets.NewSink(true, dir, "ua", time.Second, testRetryParam(), noopSink{})
	pageURL, _ := url.Parse(srv.URL + "/page")

	s.Process(context.Background(), *pageURL, []string{srv.URL + "/missing.png"})

	entries, _ := os.ReadDir(filepath.Join(dir, "images"))
	if len(entries) != 0 {
		t.Fatalf("expected no file written for a missing asset, got %d entries", len(entries))
	}
}
