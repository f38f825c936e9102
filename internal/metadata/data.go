package metadata

import (
	"time"
)

// FetchEvent records one HTTP fetch attempt made by a crawler worker against
// a claimed URL.
type FetchEvent struct {
	FetchURL    string
	HTTPStatus  int
	Duration    time.Duration
	ContentType string
	RetryCount  int
	FinalURL    string
}

// ClaimEvent records one claimBatch/commitClaims round trip against the
// working collection.
type ClaimEvent struct {
	WorkerID  int
	Requested int
	Claimed   int
}

// PublishEvent records one document write (add/upsert) against an
// IndexClient collection.
type PublishEvent struct {
	WorkerID   int
	Collection string
	URL        string
	Fields     int
}

// LockEvent records one acquire/release/contend transition on a
// LockService-managed key.
type LockEvent struct {
	Key     string
	Holder  string
	Waiting int
}

/*
crawlStats is a terminal, derived summary of one worker's run.

  - Contains only aggregate counts and durations.
  - Is computed by the pool after the worker stops.
  - Is recorded exactly once.
  - Must not influence scheduling, retries, or claim decisions.
  - Must be constructed without reading metadata.
*/
type crawlStats struct {
	totalClaimed  int
	totalFetched  int
	totalPublshed int
	totalErrors   int
	durationMs    int64
}

/*
ErrorCause is a closed, canonical classification used exclusively for
observability (logging, metrics, reporting).

Rules:
  - ErrorCause is for observability only.
  - It must never be used to derive retry, continuation, or abort decisions.
  - Any use of metadata.ErrorCause outside logging, metrics, or reporting is a
    design violation.
  - ErrorCause MUST NOT influence control flow.
  - ErrorCause MUST NOT be used for retry, continuation, or abort decisions.
  - ErrorCause values MUST have stable, package-agnostic semantics.
  - Pipeline packages MAY map their local errors to ErrorCause, but MUST NOT
    invent new meanings.

Non-goals:
  - ErrorCause does not encode severity.
  - ErrorCause does not imply retryability.
  - ErrorCause does not imply crawl or index termination.
  - ErrorCause does not imply correctness of downstream behavior.

If a failure does not clearly match a defined cause, CauseUnknown MUST be
used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

Meaning:
  - The failure does not map cleanly to any known category.
  - Used as a safe fallback.

Examples:
  - Unexpected internal errors
  - Unclassified third-party library failures

# CauseNetworkFailure

Meaning:
  - Failure caused by network transport or remote availability.

Examples:
  - TCP timeouts against a crawl target
  - IndexClient replica connection refused
  - LockService reconnect failure

# CausePolicyDisallow

Meaning:
  - A candidate URL or action was rejected by an explicit rule.

Examples:
  - URLCanonicalizer extension rejection
  - validate() scheme/host rejection
  - javascript: href rejection

# CauseContentInvalid

Meaning:
  - Content was fetched but could not be processed meaningfully.

Examples:
  - Non-HTML content-type
  - Empty or unparseable document body
  - Cached page body failed to decompress

# CauseStorageFailure

Meaning:
  - Failure while persisting or retrieving indexed content.

Examples:
  - IndexClient add/commit error
  - Public-suffix list cache write failure
  - Cached-page source read failure

# CauseInvariantViolation

Meaning:
  - A system-level invariant was violated.

Examples:
  - A claimed URL was committed twice
  - A lock was released by a non-holder
  - Delta-merge observed a cutoff in the past
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

type ErrorRecord struct {
	PackageName string
	Action      string
	Cause       ErrorCause
	ErrorString string
	ObservedAt  time.Time
	Attrs       []Attribute
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrTime       AttributeKey = "time"
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrField      AttributeKey = "field"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrCollection AttributeKey = "collection"
	AttrWorkerID   AttributeKey = "worker_id"
	AttrKey        AttributeKey = "key"
	AttrWritePath  AttributeKey = "write_path"
)
