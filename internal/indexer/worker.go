package indexer

import (
	"bytes"
	"compress/zlib"
	"context"
	"io"
	"time"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/internal/sanitizer"
	"github.com/edmiester777/search-engine/internal/tokenizer"
	"github.com/edmiester777/search-engine/pkg/canon"
	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/timeutil"
)

// noPageSleep is the wait spec.md §4.10 names for an empty cache source.
const noPageSleep = 10 * time.Second

// Worker reads cached compressed page bodies and publishes the same
// content-document shape CrawlerWorker does, performing no HTTP at all.
type Worker struct {
	id int

	source      CachedPageSource
	indexClient indexclient.Client
	sink        metadata.Sink
	suffixes    canon.SuffixSet
	sleeper     timeutil.Sleeper

	tok *tokenizer.HTMLTokenizer
	acc *tokenizer.Accumulator
}

func NewWorker(id int, source CachedPageSource, indexClient indexclient.Client, sink metadata.Sink, suffixes canon.SuffixSet) *Worker {
	return &Worker{
		id:          id,
		source:      source,
		indexClient: indexClient,
		sink:        sink,
		suffixes:    suffixes,
		sleeper:     timeutil.NewRealSleeper(),
		tok:         tokenizer.New(),
		acc:         tokenizer.NewAccumulator(),
	}
}

// Run polls RunIteration until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		w.RunIteration(ctx)
	}
}

// RunIteration drains one cached page, or sleeps noPageSleep if none is
// currently available.
func (w *Worker) RunIteration(ctx context.Context) {
	page, ok, err := w.source.Next(ctx)
	if err != nil {
		w.recordError("source", &IndexerError{Message: err.Error(), Cause: ErrCauseSource})
		w.sleeper.Sleep(noPageSleep)
		return
	}
	if !ok {
		w.sleeper.Sleep(noPageSleep)
		return
	}

	body, decompErr := decompress(page.Deflate)
	if decompErr != nil {
		w.recordError("decompress", &IndexerError{Message: decompErr.Error(), Cause: ErrCauseDecompress})
		return
	}

	sanitized, sanErr := sanitizer.Sanitize(body)
	if sanErr != nil {
		w.recordError("sanitize", sanErr)
		return
	}

	w.acc.Reset()
	w.tok.Run(sanitized, w.acc)

	w.sink.Crawling(page.URL.String())
	w.publish(ctx, page)
}

func (w *Worker) publish(ctx context.Context, page CachedPage) {
	doc, title, content := buildContentDocument(page.URL, w.suffixes, w.acc)
	if title == "" || content == "" {
		return
	}

	addErr := w.indexClient.Add(ctx, indexclient.CollectionWorking, []indexclient.Document{doc}, indexclient.AddParam{
		Overwrite: true,
		Commit:    true,
	})
	if addErr != nil {
		w.recordError("publish", addErr)
		return
	}

	w.sink.RecordPublish(metadata.PublishEvent{
		WorkerID:   w.id,
		Collection: string(indexclient.CollectionWorking),
		URL:        page.URL.String(),
		Fields:     len(doc),
	})
}

func (w *Worker) recordError(action string, err failure.ClassifiedError) {
	w.sink.RecordError(metadata.ErrorRecord{
		PackageName: "indexer",
		Action:      action,
		Cause:       mapErrorToMetadataCause(err),
		ErrorString: err.Error(),
		ObservedAt:  time.Now(),
	})
}

func mapErrorToMetadataCause(err failure.ClassifiedError) metadata.ErrorCause {
	switch err.(type) {
	case *sanitizer.SanitizeError:
		return metadata.CauseContentInvalid
	case *IndexerError:
		if ie := err.(*IndexerError); ie.Cause == ErrCauseDecompress {
			return metadata.CauseContentInvalid
		}
		return metadata.CauseStorageFailure
	}
	return metadata.CauseUnknown
}

// decompress inflates a zlib stream written at the writer's max
// compression level. compress/zlib is the standard library's only zlib
// implementation and no third-party wrapper appears anywhere in the
// retrieved examples, so this is the one component in this package built
// directly on the standard library.
func decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
