package indexclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/limiter"
	"github.com/edmiester777/search-engine/pkg/retry"
)

/*
Responsibilities

- Round-robin one worker's requests across a collection's replica URLs
- Translate add/delete/commit/optimize/search into HTTP+JSON requests
- Classify failures so the caller can decide whether to reinitialize

No example repo in the retrieved pack ships a Solr/Elasticsearch client, so
the wire format here is a small JSON REST convention (POST /update,
GET /select) rather than a borrowed client library; net/http +
encoding/json carries it, matching the HTTP idiom the rest of this module
uses.

IndexClient handles are scoped to one worker iteration and are expected to
be reinitialized by the caller on a recoverable error; the client itself
never retries across process restarts, only within one call via
pkg/retry.
*/

// Client is a thin façade over the external search index's HTTP surface.
type Client interface {
	Add(ctx context.Context, collection Collection, docs []Document, param AddParam) failure.ClassifiedError
	Delete(ctx context.Context, collection Collection, id string, param DeleteParam) failure.ClassifiedError
	Commit(ctx context.Context, collection Collection) failure.ClassifiedError
	Optimize(ctx context.Context, collection Collection) failure.ClassifiedError
	Search(ctx context.Context, collection Collection, query string, param SearchParam) (SearchPage, failure.ClassifiedError)
}

// Endpoints maps each logical collection to its static list of replica
// base URLs.
type Endpoints struct {
	Working []string
	Main    []string
}

func (e Endpoints) urlsFor(collection Collection) []string {
	if collection == CollectionMain {
		return e.Main
	}
	return e.Working
}

type HTTPClient struct {
	endpoints    Endpoints
	workerID     int
	httpClient   *http.Client
	metadataSink metadata.Sink
	backoff      limiter.BackoffTracker
	retryParam   retry.RetryParam
}

func NewHTTPClient(
	endpoints Endpoints,
	workerID int,
	timeout time.Duration,
	metadataSink metadata.Sink,
	backoff limiter.BackoffTracker,
	retryParam retry.RetryParam,
) *HTTPClient {
	return &HTTPClient{
		endpoints:    endpoints,
		workerID:     workerID,
		httpClient:   &http.Client{Timeout: timeout},
		metadataSink: metadataSink,
		backoff:      backoff,
		retryParam:   retryParam,
	}
}

// endpointFor resolves the replica this worker talks to: a worker with
// identifier i uses endpoint i mod len(urls).
func (c *HTTPClient) endpointFor(collection Collection) (string, failure.ClassifiedError) {
	urls := c.endpoints.urlsFor(collection)
	if len(urls) == 0 {
		return "", &IndexError{
			Message:   fmt.Sprintf("no replica URLs configured for collection %q", collection),
			Retryable: false,
			Cause:     ErrCauseBadRequest,
		}
	}
	return urls[c.workerID%len(urls)], nil
}

func (c *HTTPClient) Add(ctx context.Context, collection Collection, docs []Document, param AddParam) failure.ClassifiedError {
	endpoint, err := c.endpointFor(collection)
	if err != nil {
		return err
	}

	body := map[string]any{
		"docs":      docs,
		"overwrite": param.Overwrite,
		"commit":    param.Commit,
	}
	_, err = c.doJSON(ctx, "POST", endpoint, string(collection)+"/update", body)
	return c.recordErr("Add", endpoint, err)
}

func (c *HTTPClient) Delete(ctx context.Context, collection Collection, id string, param DeleteParam) failure.ClassifiedError {
	endpoint, err := c.endpointFor(collection)
	if err != nil {
		return err
	}

	body := map[string]any{
		"delete": id,
		"commit": param.Commit,
	}
	_, err = c.doJSON(ctx, "POST", endpoint, string(collection)+"/update", body)
	return c.recordErr("Delete", endpoint, err)
}

func (c *HTTPClient) Commit(ctx context.Context, collection Collection) failure.ClassifiedError {
	endpoint, err := c.endpointFor(collection)
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", endpoint, string(collection)+"/update", map[string]any{"commit": true})
	return c.recordErr("Commit", endpoint, err)
}

func (c *HTTPClient) Optimize(ctx context.Context, collection Collection) failure.ClassifiedError {
	endpoint, err := c.endpointFor(collection)
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, "POST", endpoint, string(collection)+"/update", map[string]any{"optimize": true})
	return c.recordErr("Optimize", endpoint, err)
}

func (c *HTTPClient) Search(ctx context.Context, collection Collection, query string, param SearchParam) (SearchPage, failure.ClassifiedError) {
	endpoint, err := c.endpointFor(collection)
	if err != nil {
		return SearchPage{}, err
	}

	values := url.Values{}
	values.Set("q", query)
	if param.Filter != "" {
		values.Set("fq", param.Filter)
	}
	if param.Rows > 0 {
		values.Set("rows", strconv.Itoa(param.Rows))
	}
	values.Set("start", strconv.Itoa(param.Start))

	path := string(collection) + "/select?" + values.Encode()
	respBody, err := c.doJSON(ctx, "GET", endpoint, path, nil)
	if err != nil {
		return SearchPage{}, c.recordErr("Search", endpoint, err)
	}

	var page SearchPage
	if decodeErr := json.Unmarshal(respBody, &page); decodeErr != nil {
		indexErr := &IndexError{
			Message:   fmt.Sprintf("failed to decode search response: %v", decodeErr),
			Retryable: false,
			Cause:     ErrCauseDecodeFailure,
		}
		return SearchPage{}, c.recordErr("Search", endpoint, indexErr)
	}

	return page, nil
}

// doJSON issues one retried request against endpoint+path. A nil body
// sends no request body (used for GET).
func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint, path string, body any) ([]byte, failure.ClassifiedError) {
	task := func() ([]byte, failure.ClassifiedError) {
		return c.performRequest(ctx, method, endpoint, path, body)
	}

	result := retry.Retry(c.retryParam, task)
	if result.IsSuccess() {
		c.backoff.ResetBackoff(endpoint)
		return result.Value(), nil
	}
	c.backoff.Backoff(endpoint)
	return nil, result.Err()
}

func (c *HTTPClient) performRequest(ctx context.Context, method, endpoint, path string, body any) ([]byte, failure.ClassifiedError) {
	c.backoff.MarkLastAttemptAsNow(endpoint)

	var reader io.Reader
	if body != nil {
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, &IndexError{
				Message:   fmt.Sprintf("failed to marshal request body: %v", marshalErr),
				Retryable: false,
				Cause:     ErrCauseBadRequest,
			}
		}
		reader = bytes.NewReader(encoded)
	}

	req, reqErr := http.NewRequestWithContext(ctx, method, endpoint+"/"+path, reader)
	if reqErr != nil {
		return nil, &IndexError{
			Message:   fmt.Sprintf("failed to create request: %v", reqErr),
			Retryable: false,
			Cause:     ErrCauseBadRequest,
		}
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, &IndexError{
			Message:   fmt.Sprintf("request failed: %v", doErr),
			Retryable: true,
			Cause:     ErrCauseConnectionRefused,
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, &IndexError{
			Message:   fmt.Sprintf("failed to read response body: %v", readErr),
			Retryable: true,
			Cause:     ErrCauseServerError,
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &IndexError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseServerError,
		}
	case resp.StatusCode >= 400:
		return nil, &IndexError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseBadRequest,
		}
	}

	return respBody, nil
}

func (c *HTTPClient) recordErr(action string, endpoint string, err failure.ClassifiedError) failure.ClassifiedError {
	if err == nil {
		return nil
	}
	cause := metadata.CauseUnknown
	if ie, ok := err.(*IndexError); ok {
		cause = mapIndexErrorToMetadataCause(ie)
	} else if re, ok := err.(*retry.RetryError); ok && re.Cause == retry.ErrExhaustedAttempts {
		// Only retryable IndexErrors exhaust attempts, and every retryable
		// cause maps to a network failure.
		cause = metadata.CauseNetworkFailure
	}
	c.metadataSink.RecordError(metadata.ErrorRecord{
		PackageName: "indexclient",
		Action:      action,
		Cause:       cause,
		ErrorString: err.Error(),
		ObservedAt:  time.Now(),
		Attrs: []metadata.Attribute{
			metadata.NewAttr(metadata.AttrWorkerID, strconv.Itoa(c.workerID)),
			metadata.NewAttr(metadata.AttrURL, endpoint),
		},
	})
	return err
}
