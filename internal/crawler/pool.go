package crawler

/*
CrawlerPool spawns and supervises N CrawlerWorkers, assigning each a
sequential identifier 0..N-1 used both for its metadata log prefix and
its IndexClient round-robin endpoint. It loads the public-suffix list
once, before any worker starts, and shares the parsed SuffixSet (a
read-only value after load) across every worker.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/edmiester777/search-engine/internal/assets"
	"github.com/edmiester777/search-engine/internal/fetcher"
	"github.com/edmiester777/search-engine/internal/frontier"
	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/lockservice"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/internal/suffixlist"
	"github.com/edmiester777/search-engine/pkg/limiter"
	"github.com/edmiester777/search-engine/pkg/retry"
)

// PoolConfig carries everything CrawlerPool needs to construct its
// per-worker collaborators. It is deliberately a flat struct rather than
// the full config.Config type so this package does not depend on the CLI
// layer.
type PoolConfig struct {
	ProcessCount        int
	Endpoints           indexclient.Endpoints
	LockServiceHost     string
	LockServicePort     int
	AuthKey             string
	SuffixListSourceURL string
	SuffixListCacheDir  string
	UserAgent           string
	Timeout             time.Duration
	ClaimBatchSize      int
	RetryParam          retry.RetryParam
	ImageSinkEnabled    bool
	ImageSinkDir        string
}

// Pool owns every running Worker. The suffix list, lock, metadata sink,
// backoff tracker, and image sink are shared across them; each worker's
// IndexClient, fetcher, and Frontier are its own.
type Pool struct {
	workers []*Worker
}

// NewPool builds a CrawlerPool: it loads the public-suffix list once,
// then constructs ProcessCount workers, each with its own IndexClient
// handle, fetcher, and lock-guarded Frontier.
func NewPool(cfg PoolConfig, sink metadata.Sink, lock lockservice.LockService, backoff limiter.BackoffTracker) (*Pool, *CrawlError) {
	loader := suffixlist.NewLoader(cfg.SuffixListSourceURL, cfg.SuffixListCacheDir)
	suffixes, loadErr := loader.Load()
	if loadErr != nil {
		return nil, &CrawlError{
			Message:   "failed to load public-suffix list: " + loadErr.Error(),
			Retryable: false,
			Cause:     ErrCauseSuffixList,
		}
	}

	// One Sink shared across every worker so content-hash dedup applies
	// run-wide, not per-worker.
	imageSink := assets.NewSink(cfg.ImageSinkEnabled, cfg.ImageSinkDir, cfg.UserAgent, cfg.Timeout, cfg.RetryParam, sink)

	workers := make([]*Worker, 0, cfg.ProcessCount)
	for id := 0; id < cfg.ProcessCount; id++ {
		indexClient := indexclient.NewHTTPClient(cfg.Endpoints, id, cfg.Timeout, sink, backoff, cfg.RetryParam)
		htmlFetcher := fetcher.NewHtmlFetcher(sink, cfg.Timeout)
		f := frontier.NewCrawlFrontier(indexClient, lock, sink, suffixes, id)

		worker := NewWorker(id, f, &htmlFetcher, indexClient, sink, suffixes, cfg.UserAgent, cfg.RetryParam, cfg.ClaimBatchSize)
		worker.SetImageSink(imageSink)
		workers = append(workers, worker)
	}

	return &Pool{workers: workers}, nil
}

// Run starts every worker in its own goroutine and blocks until ctx is
// cancelled and all workers have finished their in-flight iteration.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Wait()
}
