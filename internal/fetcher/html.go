package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/retry"
)

/*
Responsibilities

- Issue the crawler's HTTP GET against a claimed URL
- Apply the crawler's User-Agent and a bounded timeout
- Follow redirects and surface the final URL for redirect-source deletion
- Classify responses
- Record every attempt to the metadata sink

The fetcher never parses content; it only returns bytes and metadata.
*/

const maxRedirects = 10

type HtmlFetcher struct {
	metadataSink metadata.Sink
	httpClient   *http.Client
}

func NewHtmlFetcher(metadataSink metadata.Sink, timeout time.Duration) HtmlFetcher {
	return HtmlFetcher{
		metadataSink: metadataSink,
		httpClient:   newHTTPClient(timeout),
	}
}

// Init swaps the underlying http.Client, primarily for test injection.
func (h *HtmlFetcher) Init(httpClient *http.Client) {
	h.httpClient = httpClient
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return &FetchError{
					Message:   fmt.Sprintf("exceeded %d redirects", maxRedirects),
					Retryable: false,
					Cause:     ErrCauseRedirectLimitExceeded,
				}
			}
			return nil
		},
	}
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchParam.fetchUrl, fetchParam.userAgent)
	}
	retryResult := retry.Retry(retryParam, fetchTask)

	duration := time.Since(startTime)
	retryCount := retryResult.Attempts()

	var result FetchResult
	var err failure.ClassifiedError
	var statusCode int
	var contentType string
	var finalURL string

	if retryResult.IsFailure() {
		err = retryResult.Err()
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			err = fetchErr
		}
	} else {
		result = retryResult.Value()
		statusCode = result.Code()
		contentType = h.extractContentType(result.Headers())
		final := result.FinalURL()
		finalURL = final.String()
	}

	h.metadataSink.RecordFetch(metadata.FetchEvent{
		FetchURL:    fetchParam.fetchUrl.String(),
		HTTPStatus:  statusCode,
		Duration:    duration,
		ContentType: contentType,
		RetryCount:  retryCount,
		FinalURL:    finalURL,
	})

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			h.recordRetryError(callerMethod, fetchParam.fetchUrl, retryErr)
		} else {
			h.recordFetchError(callerMethod, fetchParam.fetchUrl, err)
		}
		return FetchResult{}, err
	}

	return result, nil
}

func (h *HtmlFetcher) extractContentType(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok {
		return ct
	}
	return ""
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if !errors.As(err, &fetchError) {
		return
	}
	h.metadataSink.RecordError(metadata.ErrorRecord{
		PackageName: "fetcher",
		Action:      callerMethod,
		Cause:       mapFetchErrorToMetadataCause(fetchError),
		ErrorString: err.Error(),
		ObservedAt:  time.Now(),
		Attrs: []metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		},
	})
}

func (h *HtmlFetcher) recordRetryError(callerMethod string, fetchUrl url.URL, retryError *retry.RetryError) {
	h.metadataSink.RecordError(metadata.ErrorRecord{
		PackageName: "fetcher",
		Action:      callerMethod,
		Cause:       metadata.CauseNetworkFailure,
		ErrorString: retryError.Error(),
		ObservedAt:  time.Now(),
		Attrs: []metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		},
	})
}

// performFetch issues one bounded GET. Per spec: method GET, header
// User-Agent: OS-SEARCH-ENGINE-CRAWLER, no body, timeout bounded by the
// client constructed in NewHtmlFetcher.
func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL, userAgent string) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return FetchResult{}, fetchErr
		}
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}

	case resp.StatusCode == 429:
		return FetchResult{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}

	case resp.StatusCode == 403:
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContent(contentType) {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("non-HTML content type: %s", contentType),
			Retryable: false,
			Cause:     ErrCauseContentTypeInvalid,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	finalURL := fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	}

	result := FetchResult{
		url:      fetchUrl,
		finalUrl: finalURL,
		body:     body,
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: responseHeaders,
		},
		fetchedAt: time.Now(),
	}

	return result, nil
}

func isHTMLContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")
}
