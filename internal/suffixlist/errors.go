package suffixlist

import (
	"fmt"

	"github.com/edmiester777/search-engine/pkg/failure"
)

type SuffixListErrorCause string

const (
	ErrCauseRequest SuffixListErrorCause = "malformed request"
	ErrCauseFetch   SuffixListErrorCause = "fetch failure"
	ErrCauseCache   SuffixListErrorCause = "cache error"
)

type SuffixListError struct {
	Message   string
	Retryable bool
	Cause     SuffixListErrorCause
}

func (e *SuffixListError) Error() string {
	return fmt.Sprintf("suffixlist error: %s: %s", e.Cause, e.Message)
}

func (e *SuffixListError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *SuffixListError) IsRetryable() bool {
	return e.Retryable
}
