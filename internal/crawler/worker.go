package crawler

/*
CrawlerWorker drives one claimed-URL-at-a-time state machine:
IDLE → CLAIMING → FETCHING → PARSING → PUBLISHING → IDLE, with edges to
BACKOFF on "no work" and FAILED on fetch/parse failure. It owns its own
fetcher, tokenizer, accumulator, IndexClient handle, and Frontier; the
LockService behind that Frontier, the metadata sink, the suffix list,
and the image sink are shared across the pool's workers.
*/

import (
	"context"
	"net/url"
	"time"

	"github.com/edmiester777/search-engine/internal/assets"
	"github.com/edmiester777/search-engine/internal/fetcher"
	"github.com/edmiester777/search-engine/internal/frontier"
	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/internal/sanitizer"
	"github.com/edmiester777/search-engine/internal/tokenizer"
	"github.com/edmiester777/search-engine/pkg/canon"
	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/retry"
	"github.com/edmiester777/search-engine/pkg/timeutil"
)

// backoffSleep is the fixed "no work available" pause spec.md §4.5 names.
const backoffSleep = 10 * time.Second

// Worker is one CrawlerWorker: claim → fetch → parse → canonicalize →
// publish, repeated until its context is cancelled.
type Worker struct {
	id int

	frontier    *frontier.CrawlFrontier
	fetcher     fetcher.Fetcher
	indexClient indexclient.Client
	sink        metadata.Sink
	suffixes    canon.SuffixSet
	sleeper     timeutil.Sleeper

	userAgent      string
	retryParam     retry.RetryParam
	claimBatchSize int

	tok       *tokenizer.HTMLTokenizer
	acc       *tokenizer.Accumulator
	imageSink *assets.Sink

	pending   []url.URL
	claimedAt time.Time
}

// SetImageSink wires the optional image-download sink in. A nil sink
// (the default) leaves image handling off entirely. CrawlerPool calls this
// for every worker with one shared Sink; config.Config.ImageSinkEnabled
// decides whether that Sink does anything.
func (w *Worker) SetImageSink(s *assets.Sink) {
	w.imageSink = s
}

// NewWorker builds one CrawlerWorker. id feeds both the metadata log
// prefix and the IndexClient round-robin; the caller (CrawlerPool)
// assigns sequential ids 0..N-1.
func NewWorker(
	id int,
	f *frontier.CrawlFrontier,
	htmlFetcher fetcher.Fetcher,
	indexClient indexclient.Client,
	sink metadata.Sink,
	suffixes canon.SuffixSet,
	userAgent string,
	retryParam retry.RetryParam,
	claimBatchSize int,
) *Worker {
	return &Worker{
		id:             id,
		frontier:       f,
		fetcher:        htmlFetcher,
		indexClient:    indexClient,
		sink:           sink,
		suffixes:       suffixes,
		sleeper:        timeutil.NewRealSleeper(),
		userAgent:      userAgent,
		retryParam:     retryParam,
		claimBatchSize: claimBatchSize,
		tok:            tokenizer.New(),
		acc:            tokenizer.NewAccumulator(),
	}
}

// Run polls RunIteration until ctx is cancelled, honoring the
// graceful-shutdown rule that an in-flight iteration always completes
// before the loop exits.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		w.RunIteration(ctx)
	}
}

// RunIteration drives exactly one step of the state machine: it claims a
// fresh batch only when its pending queue is empty, then processes one
// URL from that queue through fetch/parse/publish.
func (w *Worker) RunIteration(ctx context.Context) {
	if len(w.pending) == 0 {
		w.claim(ctx)
	}
	if len(w.pending) == 0 {
		w.sleeper.Sleep(backoffSleep)
		return
	}

	claimed := w.pending[0]
	w.pending = w.pending[1:]

	w.processOne(ctx, claimed)
}

func (w *Worker) claim(ctx context.Context) {
	now := time.Now()
	batch, err := w.frontier.ClaimBatch(ctx, w.claimBatchSize, now)
	if err != nil {
		w.recordError("RunIteration", "claim", err)
		return
	}
	w.pending = batch
	w.claimedAt = now
}

// processOne runs FETCHING → PARSING → PUBLISHING for one claimed URL,
// taking the FAILED edge (delete claimed id from both collections) on
// any fetch or parse error, and the redirect-delete-then-rediscover path
// when the final URL differs from the claimed one.
func (w *Worker) processOne(ctx context.Context, claimed url.URL) {
	fetchParam := fetcher.NewFetchParam(claimed, w.userAgent)
	result, fetchErr := w.fetcher.Fetch(ctx, fetchParam, w.retryParam)
	if fetchErr != nil {
		w.fail(ctx, claimed)
		return
	}

	if result.Redirected() {
		w.handleRedirect(ctx, claimed, result.FinalURL())
		return
	}

	body, sanErr := sanitizer.Sanitize(result.Body())
	if sanErr != nil {
		w.recordError("processOne", "sanitize", sanErr)
		w.fail(ctx, claimed)
		return
	}

	w.acc.Reset()
	w.tok.Run(body, w.acc)

	w.sink.Crawling(claimed.String())
	w.imageSink.Process(ctx, claimed, w.acc.Images())
	w.publish(ctx, claimed)
}

func (w *Worker) handleRedirect(ctx context.Context, claimed url.URL, final url.URL) {
	w.deleteFromBoth(ctx, claimed.String())

	entry := w.frontier.NewDiscoveredEntry(final)
	if err := w.frontier.Submit(ctx, []frontier.Entry{entry}); err != nil {
		w.recordError("handleRedirect", "submit", err)
	}
}

func (w *Worker) publish(ctx context.Context, claimed url.URL) {
	doc, title, content := buildContentDocument(claimed, w.suffixes, w.acc)
	doc["last_update_time"] = w.claimedAt.Unix()

	if title != "" && content != "" {
		addErr := w.indexClient.Add(ctx, indexclient.CollectionWorking, []indexclient.Document{doc}, indexclient.AddParam{
			Overwrite: true,
			Commit:    true,
		})
		if addErr != nil {
			w.recordError("publish", "add", addErr)
		} else {
			w.sink.RecordPublish(metadata.PublishEvent{
				WorkerID:   w.id,
				Collection: string(indexclient.CollectionWorking),
				URL:        claimed.String(),
				Fields:     len(doc),
			})
		}
	}

	discovered := foundURLs(claimed, w.acc.Links())
	if len(discovered) == 0 {
		return
	}

	entries := make([]frontier.Entry, 0, len(discovered))
	for _, u := range discovered {
		entries = append(entries, w.frontier.NewDiscoveredEntry(u))
	}
	if err := w.frontier.Submit(ctx, entries); err != nil {
		w.recordError("publish", "submit-found-urls", err)
	}
}

func (w *Worker) fail(ctx context.Context, claimed url.URL) {
	w.deleteFromBoth(ctx, claimed.String())
}

func (w *Worker) deleteFromBoth(ctx context.Context, id string) {
	if err := w.indexClient.Delete(ctx, indexclient.CollectionWorking, id, indexclient.DeleteParam{Commit: true}); err != nil {
		w.recordError("deleteFromBoth", "delete-working", err)
	}
	if err := w.indexClient.Delete(ctx, indexclient.CollectionMain, id, indexclient.DeleteParam{Commit: true}); err != nil {
		w.recordError("deleteFromBoth", "delete-main", err)
	}
}

func (w *Worker) recordError(action string, step string, err failure.ClassifiedError) {
	w.sink.RecordError(metadata.ErrorRecord{
		PackageName: "crawler",
		Action:      action + "/" + step,
		Cause:       mapErrorToMetadataCause(err),
		ErrorString: err.Error(),
		ObservedAt:  time.Now(),
		Attrs: []metadata.Attribute{
			metadata.NewAttr(metadata.AttrWorkerID, itoa(w.id)),
		},
	})
}
