package crawler

import (
	"fmt"

	"github.com/edmiester777/search-engine/pkg/failure"
)

type CrawlErrorCause string

const (
	ErrCauseFetch      CrawlErrorCause = "fetch"
	ErrCauseParse      CrawlErrorCause = "parse"
	ErrCausePublish    CrawlErrorCause = "publish"
	ErrCauseSuffixList CrawlErrorCause = "suffix list"
)

// CrawlError reports a failure raised while building a CrawlerWorker or
// its CrawlerPool, before any worker loop starts. Per-iteration failures
// never escape the worker loop as an error value; they are classified,
// logged, and the iteration moves to FAILED or BACKOFF instead.
type CrawlError struct {
	Message   string
	Retryable bool
	Cause     CrawlErrorCause
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawler error: %s: %s", e.Cause, e.Message)
}

func (e *CrawlError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *CrawlError) IsRetryable() bool {
	return e.Retryable
}

var _ failure.ClassifiedError = (*CrawlError)(nil)
