package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/edmiester777/search-engine/internal/fetcher"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/retry"
	"github.com/edmiester777/search-engine/pkg/timeutil"
)

// mockSink is a test double for metadata.Sink.
type mockSink struct {
	fetchEvents []metadata.FetchEvent
	errorEvents []metadata.ErrorRecord
}

func (m *mockSink) RecordFetch(ev metadata.FetchEvent)     { m.fetchEvents = append(m.fetchEvents, ev) }
func (m *mockSink) RecordClaim(metadata.ClaimEvent)         {}
func (m *mockSink) RecordPublish(metadata.PublishEvent)     {}
func (m *mockSink) RecordLock(metadata.LockEvent)           {}
func (m *mockSink) RecordError(rec metadata.ErrorRecord)    { m.errorEvents = append(m.errorEvents, rec) }
func (m *mockSink) Crawling(string)                         {}

var _ metadata.Sink = &mockSink{}

func createTestRetryParam(maxAttempts int) retry.RetryParam {
	return retry.NewRetryParam(
		10*time.Millisecond,
		5*time.Millisecond,
		42,
		maxAttempts,
		timeutil.NewBackoffParam(
			10*time.Millisecond,
			2.0,
			100*time.Millisecond,
		),
	)
}

func TestHtmlFetcher_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "OS-SEARCH-ENGINE-CRAWLER" {
			t.Errorf("expected crawler user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello World</body></html>"))
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)

	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(3)

	result, err := f.Fetch(context.Background(), fetchParam, retryParam)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Code() != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, result.Code())
	}
	if string(result.Body()) != "<html><body>Hello World</body></html>" {
		t.Errorf("unexpected body: %s", string(result.Body()))
	}
	if result.Redirected() {
		t.Error("expected no redirect")
	}

	if len(sink.fetchEvents) != 1 {
		t.Fatalf("expected 1 fetch event, got %d", len(sink.fetchEvents))
	}
	evt := sink.fetchEvents[0]
	if evt.FetchURL != server.URL {
		t.Errorf("expected URL %s, got %s", server.URL, evt.FetchURL)
	}
	if evt.HTTPStatus != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, evt.HTTPStatus)
	}
	if evt.FinalURL != server.URL {
		t.Errorf("expected final URL %s, got %s", server.URL, evt.FinalURL)
	}
	if len(sink.errorEvents) != 0 {
		t.Errorf("expected 0 error events, got %d", len(sink.errorEvents))
	}
}

func TestHtmlFetcher_Fetch_RedirectFinalURLDiffers(t *testing.T) {
	var targetURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, targetURL, http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>end</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	targetURL = server.URL + "/end"

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)

	fetchUrl, _ := url.Parse(server.URL + "/start")
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(1)

	result, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Redirected() {
		t.Error("expected redirect to be detected")
	}
	finalURL := result.FinalURL()
	if finalURL.String() != targetURL {
		t.Errorf("expected final URL %s, got %s", targetURL, finalURL.String())
	}
}

func TestHtmlFetcher_Fetch_NonHTMLContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "not html"}`))
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)

	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(3)

	_, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err == nil {
		t.Fatal("expected error for non-HTML content, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for invalid content type")
	}
	if len(sink.fetchEvents) != 1 {
		t.Fatalf("expected 1 fetch event, got %d", len(sink.fetchEvents))
	}
	if len(sink.errorEvents) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(sink.errorEvents))
	}
	if sink.errorEvents[0].PackageName != "fetcher" {
		t.Errorf("expected package name 'fetcher', got %s", sink.errorEvents[0].PackageName)
	}
}

func TestHtmlFetcher_Fetch_HTTP404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)
	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(3)

	_, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}
	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for 404")
	}
}

func TestHtmlFetcher_Fetch_HTTP403(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)
	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(3)

	_, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err == nil {
		t.Fatal("expected error for 403, got nil")
	}
	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for 403")
	}
}

func TestHtmlFetcher_Fetch_HTTP500_Retryable(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)
	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(2)

	_, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err == nil {
		t.Fatal("expected error after retries exhausted, got nil")
	}
	if requestCount < 2 {
		t.Errorf("expected at least 2 requests due to retry, got %d", requestCount)
	}
	var retryErr *retry.RetryError
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected RetryError after exhausted retries, got %T", err)
	}
	if len(sink.errorEvents) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(sink.errorEvents))
	}
	if sink.errorEvents[0].Cause != metadata.CauseNetworkFailure {
		t.Errorf("expected cause CauseNetworkFailure, got %v", sink.errorEvents[0].Cause)
	}
	if len(sink.fetchEvents) != 1 {
		t.Fatalf("expected 1 fetch event, got %d", len(sink.fetchEvents))
	}
	if sink.fetchEvents[0].RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", sink.fetchEvents[0].RetryCount)
	}
}

func TestHtmlFetcher_Fetch_HTTP429_Retryable(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)
	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(2)

	_, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err == nil {
		t.Fatal("expected error after retries exhausted, got nil")
	}
	if requestCount < 2 {
		t.Errorf("expected at least 2 requests due to retry, got %d", requestCount)
	}
	var retryErr *retry.RetryError
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected RetryError after exhausted retries, got %T", err)
	}
}

func TestHtmlFetcher_Fetch_SuccessAfterRetry(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>Success</html>"))
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)
	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(3)

	result, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err != nil {
		t.Fatalf("expected success after retry, got error: %v", err)
	}
	if requestCount != 2 {
		t.Errorf("expected 2 requests (1 fail + 1 success), got %d", requestCount)
	}
	if result.Code() != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, result.Code())
	}
	if len(sink.fetchEvents) != 1 {
		t.Fatalf("expected 1 fetch event, got %d", len(sink.fetchEvents))
	}
	if sink.fetchEvents[0].RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", sink.fetchEvents[0].RetryCount)
	}
	if len(sink.errorEvents) != 0 {
		t.Errorf("expected 0 error events, got %d", len(sink.errorEvents))
	}
}

func TestHtmlFetcher_FetchResult_Accessors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Custom-Header", "test-value")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>Test</html>"))
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)
	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(3)

	result, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resultURL := result.URL()
	if resultURL.String() != fetchUrl.String() {
		t.Errorf("expected URL %s, got %s", fetchUrl.String(), resultURL.String())
	}
	if result.Code() != http.StatusOK {
		t.Errorf("expected code %d, got %d", http.StatusOK, result.Code())
	}
	expectedSize := uint64(len("<html>Test</html>"))
	if result.SizeByte() != expectedSize {
		t.Errorf("expected size %d, got %d", expectedSize, result.SizeByte())
	}
	headers := result.Headers()
	if headers["Content-Type"] != "text/html; charset=utf-8" {
		t.Errorf("unexpected Content-Type header: %s", headers["Content-Type"])
	}
	if headers["X-Custom-Header"] != "test-value" {
		t.Errorf("unexpected X-Custom-Header: %s", headers["X-Custom-Header"])
	}
}

func TestFetchError_Classification(t *testing.T) {
	tests := []struct {
		name            string
		statusCode      int
		contentType     string
		expectRetryable bool
	}{
		{"500 Internal Server Error - retryable", http.StatusInternalServerError, "text/html", true},
		{"502 Bad Gateway - retryable", http.StatusBadGateway, "text/html", true},
		{"503 Service Unavailable - retryable", http.StatusServiceUnavailable, "text/html", true},
		{"400 Bad Request - not retryable", http.StatusBadRequest, "text/html", false},
		{"401 Unauthorized - not retryable", http.StatusUnauthorized, "text/html", false},
		{"403 Forbidden - not retryable", http.StatusForbidden, "text/html", false},
		{"404 Not Found - not retryable", http.StatusNotFound, "text/html", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			sink := &mockSink{}
			f := fetcher.NewHtmlFetcher(sink, time.Second)
			fetchUrl, _ := url.Parse(server.URL)
			fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
			retryParam := createTestRetryParam(1)

			_, err := f.Fetch(context.Background(), fetchParam, retryParam)
			if err == nil {
				t.Fatal("expected error")
			}

			var fetchErr *fetcher.FetchError
			if errors.As(err, &fetchErr) {
				if fetchErr.IsRetryable() != tt.expectRetryable {
					t.Errorf("expected retryable=%v, got retryable=%v", tt.expectRetryable, fetchErr.IsRetryable())
				}
			}
		})
	}
}

func TestHtmlFetcher_FetchError_Severity(t *testing.T) {
	err := &fetcher.FetchError{
		Message:   "test error",
		Retryable: true,
		Cause:     fetcher.ErrCauseNetworkFailure,
	}
	var classifiedErr failure.ClassifiedError = err
	if classifiedErr.Severity() != failure.SeverityRecoverable {
		t.Errorf("expected SeverityRecoverable for retryable error, got %d", classifiedErr.Severity())
	}

	nonRetryableErr := &fetcher.FetchError{
		Message:   "test error",
		Retryable: false,
		Cause:     fetcher.ErrCauseContentTypeInvalid,
	}
	classifiedErr = nonRetryableErr
	if classifiedErr.Severity() != failure.SeverityFatal {
		t.Errorf("expected SeverityFatal for non-retryable error, got %d", classifiedErr.Severity())
	}
}

func TestHtmlFetcher_Fetch_ReadResponseBodyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("response writer does not support hijacking")
		}
		conn, bufrw, err := hj.Hijack()
		if err != nil {
			t.Fatal("hijack failed:", err)
		}
		defer conn.Close()

		headers := "HTTP/1.1 200 OK\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"Content-Length: 100\r\n" +
			"\r\n"
		if _, err := bufrw.WriteString(headers); err != nil {
			t.Fatal("write headers failed:", err)
		}
		if _, err := bufrw.WriteString("partial"); err != nil {
			t.Fatal("write body failed:", err)
		}
		bufrw.Flush()
		conn.Close()
	}))
	defer server.Close()

	sink := &mockSink{}
	f := fetcher.NewHtmlFetcher(sink, time.Second)
	fetchUrl, _ := url.Parse(server.URL)
	fetchParam := fetcher.NewFetchParam(*fetchUrl, "OS-SEARCH-ENGINE-CRAWLER")
	retryParam := createTestRetryParam(1)

	_, err := f.Fetch(context.Background(), fetchParam, retryParam)
	if err == nil {
		t.Fatal("expected error for read response body failure, got nil")
	}

	var retryErr *retry.RetryError
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected RetryError, got %T", err)
	}
	if !strings.Contains(retryErr.Error(), fetcher.ErrCauseReadResponseBodyError) {
		t.Errorf("expected error message to contain cause %q, got %q", fetcher.ErrCauseReadResponseBodyError, retryErr.Error())
	}
	if len(sink.fetchEvents) != 1 {
		t.Fatalf("expected 1 fetch event, got %d", len(sink.fetchEvents))
	}
	if len(sink.errorEvents) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(sink.errorEvents))
	}
	if sink.errorEvents[0].PackageName != "fetcher" {
		t.Errorf("expected package name 'fetcher', got %s", sink.errorEvents[0].PackageName)
	}
	if sink.errorEvents[0].Cause != metadata.CauseNetworkFailure {
		t.Errorf("expected cause CauseNetworkFailure, got %v", sink.errorEvents[0].Cause)
	}
}
