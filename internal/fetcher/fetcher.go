package fetcher

import (
	"context"
	"net/http"

	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/retry"
)

// Fetcher performs one bounded HTTP GET against a claimed URL. Per spec, the
// request carries User-Agent: OS-SEARCH-ENGINE-CRAWLER, has no body, follows
// redirects, and is bounded by a timeout. It never parses content; it
// returns bytes and metadata only.
type Fetcher interface {
	Init(httpClient *http.Client)
	Fetch(
		ctx context.Context,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}
