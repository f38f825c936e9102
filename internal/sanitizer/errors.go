package sanitizer

import (
	"fmt"

	"github.com/edmiester777/search-engine/pkg/failure"
)

type SanitizeErrorCause string

const (
	ErrCauseInvalidUTF8 SanitizeErrorCause = "invalid utf-8"
)

// SanitizeError reports a document that could not be made safe to tokenize.
// It is always fatal to the one document it was raised for, never to the
// worker processing it.
type SanitizeError struct {
	Message string
	Cause   SanitizeErrorCause
}

func (e *SanitizeError) Error() string {
	return fmt.Sprintf("sanitize error: %s: %s", e.Cause, e.Message)
}

func (e *SanitizeError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*SanitizeError)(nil)
