package crawler

import (
	"strconv"

	"github.com/edmiester777/search-engine/internal/frontier"
	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/internal/sanitizer"
	"github.com/edmiester777/search-engine/pkg/failure"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// mapErrorToMetadataCause maps a collaborator's classified error to the
// canonical, observability-only metadata.ErrorCause table. This mapping
// never drives control flow; CrawlerWorker already decided to continue
// (or fail this one URL) before calling it.
func mapErrorToMetadataCause(err failure.ClassifiedError) metadata.ErrorCause {
	switch err.(type) {
	case *sanitizer.SanitizeError:
		return metadata.CauseContentInvalid
	case *frontier.FrontierError, *indexclient.IndexError:
		return metadata.CauseStorageFailure
	case *CrawlError:
		return metadata.CauseInvariantViolation
	}
	if err.Severity() == failure.SeverityRecoverable {
		return metadata.CauseNetworkFailure
	}
	return metadata.CauseUnknown
}
