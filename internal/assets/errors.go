package assets

import (
	"fmt"

	"github.com/edmiester777/search-engine/pkg/failure"
)

type AssetErrorCause string

const (
	ErrCauseNetworkFailure AssetErrorCause = "network failure"
	ErrCauseAssetTooLarge  AssetErrorCause = "asset too large"
	ErrCauseWriteFailure   AssetErrorCause = "write failure"
	ErrCausePathError      AssetErrorCause = "path error"
)

// AssetError reports a single image fetch or write failure. Missing
// assets are reported, never fatal: Sink.Process continues with the
// next image regardless of what Severity an AssetError carries.
type AssetError struct {
	Message   string
	Retryable bool
	Cause     AssetErrorCause
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset error: %s: %s", e.Cause, e.Message)
}

func (e *AssetError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*AssetError)(nil)
