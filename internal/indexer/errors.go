package indexer

import (
	"fmt"

	"github.com/edmiester777/search-engine/pkg/failure"
)

type IndexerErrorCause string

const (
	ErrCauseDecompress IndexerErrorCause = "decompress"
	ErrCauseSource     IndexerErrorCause = "cached page source"
)

// IndexerError is always fatal to the one cached page it was raised for,
// never to the worker loop: a decompress failure or source error moves
// the loop to the next page, the same way CrawlerWorker's FAILED edge
// never stops the worker.
type IndexerError struct {
	Message string
	Cause   IndexerErrorCause
}

func (e *IndexerError) Error() string {
	return fmt.Sprintf("indexer error: %s: %s", e.Cause, e.Message)
}

func (e *IndexerError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*IndexerError)(nil)
