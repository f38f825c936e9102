package frontier

/*
Frontier Responsibilities
- Hold the set of discovered-but-not-yet-crawled URLs in the working
  collection
- Run the claim protocol: a lock-guarded read-then-mark round that
  guarantees no two workers claim the same URL inside one cool-down
  window
- Accept newly discovered URLs without overwriting URLs already known

It knows nothing about fetching, parsing, or the on-page content those
URLs eventually yield; that is CrawlerWorker's job once it holds a
claimed batch.
*/

import (
	"context"
	"net/url"
	"time"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/lockservice"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/canon"
	"github.com/edmiester777/search-engine/pkg/failure"
)

const lockKey = "frontier"

// CrawlFrontier implements the claim protocol against the working
// collection of an IndexClient, serialized through a LockService so the
// at-most-one-claimer guarantee holds regardless of how many
// CrawlerWorkers are running.
type CrawlFrontier struct {
	indexClient  indexclient.Client
	lock         lockservice.LockService
	metadataSink metadata.Sink
	suffixes     canon.SuffixSet
	workerID     int
}

func NewCrawlFrontier(
	indexClient indexclient.Client,
	lock lockservice.LockService,
	metadataSink metadata.Sink,
	suffixes canon.SuffixSet,
	workerID int,
) *CrawlFrontier {
	return &CrawlFrontier{
		indexClient:  indexClient,
		lock:         lock,
		metadataSink: metadataSink,
		suffixes:     suffixes,
		workerID:     workerID,
	}
}

// ClaimBatch runs one claim round: acquire the lock, query working for up
// to n documents whose last_update_time falls in [0, now-7d], mark each
// claimed id with last_update_time=now, release the lock, and return the
// claimed URLs. A claimer that crashes after this call returns but before
// finishing its work leaves those ids marked claimed-but-stale; they are
// not eligible again for another 7 days.
func (f *CrawlFrontier) ClaimBatch(ctx context.Context, n int, now time.Time) ([]url.URL, failure.ClassifiedError) {
	release, err := f.lock.Acquire(ctx, lockKey)
	if err != nil {
		return nil, &FrontierError{
			Message:   "failed to acquire frontier lock: " + err.Error(),
			Retryable: true,
			Cause:     ErrCauseLockUnavailable,
		}
	}
	defer release()

	page, searchErr := f.indexClient.Search(ctx, indexclient.CollectionWorking, "*:*", indexclient.SearchParam{
		Filter: claimFilter(now),
		Rows:   n,
	})
	if searchErr != nil {
		return nil, &FrontierError{
			Message:   "failed to query eligible URLs: " + searchErr.Error(),
			Retryable: searchErr.Severity() == failure.SeverityRecoverable,
			Cause:     ErrCauseIndexFailure,
		}
	}

	claimed := make([]url.URL, 0, len(page.Docs))
	ids := make([]string, 0, len(page.Docs))
	for _, doc := range page.Docs {
		u, ok := entryFromDocument(doc)
		if !ok {
			continue
		}
		claimed = append(claimed, u)
		ids = append(ids, u.String())
	}

	if len(ids) > 0 {
		if markErr := f.markClaimed(ctx, ids, now); markErr != nil {
			return nil, markErr
		}
	}

	f.metadataSink.RecordClaim(metadata.ClaimEvent{
		WorkerID:  f.workerID,
		Requested: n,
		Claimed:   len(claimed),
	})

	return claimed, nil
}

// CommitClaims re-marks urls as claimed as of now, under the same lock
// ClaimBatch uses. Exposed separately so a worker that extends or retries
// its hold on a batch can re-stamp it without running a full claim round.
func (f *CrawlFrontier) CommitClaims(ctx context.Context, urls []url.URL, now time.Time) failure.ClassifiedError {
	release, err := f.lock.Acquire(ctx, lockKey)
	if err != nil {
		return &FrontierError{
			Message:   "failed to acquire frontier lock: " + err.Error(),
			Retryable: true,
			Cause:     ErrCauseLockUnavailable,
		}
	}
	defer release()

	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		ids = append(ids, u.String())
	}
	return f.markClaimed(ctx, ids, now)
}

func (f *CrawlFrontier) markClaimed(ctx context.Context, ids []string, now time.Time) failure.ClassifiedError {
	docs := make([]indexclient.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, indexclient.Document{
			"id":               id,
			"last_update_time": now.Unix(),
		})
	}

	addErr := f.indexClient.Add(ctx, indexclient.CollectionWorking, docs, indexclient.AddParam{
		Overwrite: true,
		Commit:    true,
	})
	if addErr != nil {
		return &FrontierError{
			Message:   "failed to mark claimed ids: " + addErr.Error(),
			Retryable: addErr.Severity() == failure.SeverityRecoverable,
			Cause:     ErrCauseIndexFailure,
		}
	}
	return nil
}

// Submit inserts newly discovered URLs into the working collection with
// overwrite=false, so a URL already known (claimed, stale, or otherwise)
// keeps its existing last_update_time rather than being reset to 0.
func (f *CrawlFrontier) Submit(ctx context.Context, entries []Entry) failure.ClassifiedError {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]indexclient.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e.toDocument())
	}

	addErr := f.indexClient.Add(ctx, indexclient.CollectionWorking, docs, indexclient.AddParam{
		Overwrite: false,
		Commit:    true,
	})
	if addErr != nil {
		return &FrontierError{
			Message:   "failed to submit discovered URLs: " + addErr.Error(),
			Retryable: addErr.Severity() == failure.SeverityRecoverable,
			Cause:     ErrCauseIndexFailure,
		}
	}
	return nil
}

// NewDiscoveredEntry builds the Entry for a freshly canonicalized,
// just-discovered URL: last_update_time=0 makes it immediately eligible
// for claiming.
func (f *CrawlFrontier) NewDiscoveredEntry(u url.URL) Entry {
	return NewEntry(u, f.suffixes, time.Unix(0, 0))
}
