package frontier

import (
	"fmt"

	"github.com/edmiester777/search-engine/pkg/failure"
)

type FrontierErrorCause string

const (
	ErrCauseLockUnavailable FrontierErrorCause = "lock unavailable"
	ErrCauseIndexFailure    FrontierErrorCause = "index failure"
)

type FrontierError struct {
	Message   string
	Retryable bool
	Cause     FrontierErrorCause
}

func (e *FrontierError) Error() string {
	return fmt.Sprintf("frontier error: %s: %s", e.Cause, e.Message)
}

func (e *FrontierError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FrontierError) IsRetryable() bool {
	return e.Retryable
}

var _ failure.ClassifiedError = (*FrontierError)(nil)
