package indexclient

import (
	"fmt"

	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/failure"
)

type IndexErrorCause string

const (
	ErrCauseConnectionRefused = "connection refused"
	ErrCauseTimeout           = "timeout"
	ErrCauseServerError       = "server error"
	ErrCauseBadRequest        = "bad request"
	ErrCauseDecodeFailure     = "response decode failure"
)

type IndexError struct {
	Message   string
	Retryable bool
	Cause     IndexErrorCause
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("indexclient error: %s: %s", e.Cause, e.Message)
}

func (e *IndexError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *IndexError) IsRetryable() bool {
	return e.Retryable
}

func mapIndexErrorToMetadataCause(err *IndexError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseConnectionRefused, ErrCauseTimeout, ErrCauseServerError:
		return metadata.CauseNetworkFailure
	case ErrCauseBadRequest, ErrCauseDecodeFailure:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
