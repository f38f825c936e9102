package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edmiester777/search-engine/internal/config"
	"github.com/edmiester777/search-engine/internal/crawler"
	"github.com/edmiester777/search-engine/internal/deltamerge"
	"github.com/edmiester777/search-engine/internal/frontier"
	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/indexer"
	"github.com/edmiester777/search-engine/internal/lockservice"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/internal/optimizer"
	"github.com/edmiester777/search-engine/internal/rebooster"
	"github.com/edmiester777/search-engine/internal/suffixlist"
	"github.com/edmiester777/search-engine/pkg/limiter"
	"github.com/edmiester777/search-engine/pkg/retry"
	"github.com/edmiester777/search-engine/pkg/timeutil"
)

// ErrOutOfCore is returned by modes the spec scopes out of this module's
// core (the legacy network scanner and exploit probe).
var ErrOutOfCore = errors.New("mode is out of core for this module")

func endpointsFromConfig(cfg config.Config) indexclient.Endpoints {
	return indexclient.Endpoints{
		Working: cfg.WorkingCollectionURLs(),
		Main:    cfg.MainCollectionURLs(),
	}
}

func retryParamFromConfig(cfg config.Config) retry.RetryParam {
	return retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration()),
	)
}

// rootContext cancels on SIGINT/SIGTERM so a long-running mode can finish
// its in-flight iteration before the process exits, per spec.md §5's
// graceful-shutdown note.
func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Dispatch builds mode's collaborators from cfg and runs it. It blocks
// until the mode's loop returns: long-running modes run until ctx is
// cancelled; one-shot modes (rebooster, deltamerge) return once done.
func Dispatch(mode Mode, cfg config.Config) error {
	ctx, cancel := rootContext()
	defer cancel()

	switch mode {
	case ModeWebCrawler:
		return runWebCrawler(ctx, cfg)
	case ModeIndexer:
		return runIndexer(ctx, cfg)
	case ModeOptimizer:
		return runOptimizer(ctx, cfg)
	case ModeRebooster:
		return runRebooster(ctx, cfg)
	case ModeDeltaMerge:
		return runDeltaMerge(ctx, cfg)
	case ModeWebCrawlerManager:
		return runWebCrawlerManager(ctx, cfg)
	case ModeScanner, ModeExploit:
		return fmt.Errorf("%w: %s", ErrOutOfCore, mode)
	default:
		return fmt.Errorf("unhandled mode: %s", mode)
	}
}

func runWebCrawler(ctx context.Context, cfg config.Config) error {
	sink := metadata.NewRecorder(os.Stdout, metadata.RoleCrawlerWorker, 0, cfg.VerboseTrace())
	lock, closeLock, err := dialLock(ctx, cfg, sink)
	if err != nil {
		return err
	}
	defer closeLock()

	backoff := limiter.NewConcurrentBackoffTracker()
	backoff.SetBaseDelay(cfg.BaseDelay())
	backoff.SetJitter(cfg.Jitter())
	backoff.SetRandomSeed(cfg.RandomSeed())

	pool, poolErr := crawler.NewPool(crawler.PoolConfig{
		ProcessCount:        cfg.ProcessCount(),
		Endpoints:           endpointsFromConfig(cfg),
		LockServiceHost:     cfg.LockServiceHost(),
		LockServicePort:     cfg.LockServicePort(),
		AuthKey:             cfg.AuthKey(),
		SuffixListSourceURL: cfg.SuffixListSourceURL(),
		SuffixListCacheDir:  cfg.SuffixListCacheDir(),
		UserAgent:           cfg.UserAgent(),
		Timeout:             cfg.Timeout(),
		ClaimBatchSize:      cfg.ClaimBatchSize(),
		RetryParam:          retryParamFromConfig(cfg),
		ImageSinkEnabled:    cfg.ImageSinkEnabled(),
		ImageSinkDir:        cfg.ImageSinkDir(),
	}, sink, lock, backoff)
	if poolErr != nil {
		return poolErr
	}

	if err := seedFrontier(ctx, cfg, sink, lock); err != nil {
		return err
	}

	pool.Run(ctx)
	return nil
}

// seedFrontier submits every operator-provided seed URL once at startup,
// via the same one-way Submit path a discovered link takes.
func seedFrontier(ctx context.Context, cfg config.Config, sink metadata.Sink, lock lockservice.LockService) error {
	seeds := cfg.SeedURLs()
	if len(seeds) == 0 {
		return nil
	}

	loader := suffixlist.NewLoader(cfg.SuffixListSourceURL(), cfg.SuffixListCacheDir())
	suffixes, loadErr := loader.Load()
	if loadErr != nil {
		return loadErr
	}

	indexClient := indexclient.NewHTTPClient(endpointsFromConfig(cfg), 0, cfg.Timeout(), sink, limiter.NewConcurrentBackoffTracker(), retryParamFromConfig(cfg))
	f := frontier.NewCrawlFrontier(indexClient, lock, sink, suffixes, 0)

	entries := make([]frontier.Entry, 0, len(seeds))
	for _, u := range seeds {
		entries = append(entries, f.NewDiscoveredEntry(u))
	}
	if err := f.Submit(ctx, entries); err != nil {
		return err
	}
	return nil
}

func runIndexer(ctx context.Context, cfg config.Config) error {
	if cfg.CachedPageSourceDSN() == "" {
		return fmt.Errorf("indexer mode requires --cached-page-source-dsn")
	}

	sink := metadata.NewRecorder(os.Stdout, metadata.RoleIndexerWorker, 0, cfg.VerboseTrace())

	pool, err := pgxpool.New(ctx, cfg.CachedPageSourceDSN())
	if err != nil {
		return fmt.Errorf("connecting cached-page source: %w", err)
	}
	defer pool.Close()

	loader := suffixlist.NewLoader(cfg.SuffixListSourceURL(), cfg.SuffixListCacheDir())
	suffixes, loadErr := loader.Load()
	if loadErr != nil {
		return loadErr
	}

	source := indexer.NewPostgresSource(pool)

	workers := make([]*indexer.Worker, cfg.ProcessCount())
	for id := range workers {
		indexClient := indexclient.NewHTTPClient(endpointsFromConfig(cfg), id, cfg.Timeout(), sink, limiter.NewConcurrentBackoffTracker(), retryParamFromConfig(cfg))
		workers[id] = indexer.NewWorker(id, source, indexClient, sink, suffixes)
	}

	done := make(chan struct{})
	for _, w := range workers {
		go func(w *indexer.Worker) {
			w.Run(ctx)
			done <- struct{}{}
		}(w)
	}
	for range workers {
		<-done
	}
	return nil
}

func runOptimizer(ctx context.Context, cfg config.Config) error {
	sink := metadata.NewRecorder(os.Stdout, metadata.RoleCrawlerWorker, 0, cfg.VerboseTrace())
	endpoints := endpointsFromConfig(cfg)
	retryParam := retryParamFromConfig(cfg)

	factory := func() indexclient.Client {
		return indexclient.NewHTTPClient(endpoints, 0, cfg.Timeout(), sink, limiter.NewConcurrentBackoffTracker(), retryParam)
	}

	loop := optimizer.NewLoop(factory, sink)
	loop.Run(ctx)
	return nil
}

func runRebooster(ctx context.Context, cfg config.Config) error {
	sink := metadata.NewRecorder(os.Stdout, metadata.RoleCrawlerWorker, 0, cfg.VerboseTrace())
	client := indexclient.NewHTTPClient(endpointsFromConfig(cfg), 0, cfg.Timeout(), sink, limiter.NewConcurrentBackoffTracker(), retryParamFromConfig(cfg))
	if err := rebooster.Run(ctx, client, sink); err != nil {
		return err
	}
	return nil
}

func runDeltaMerge(ctx context.Context, cfg config.Config) error {
	sink := metadata.NewRecorder(os.Stdout, metadata.RoleCrawlerWorker, 0, cfg.VerboseTrace())
	client := indexclient.NewHTTPClient(endpointsFromConfig(cfg), 0, cfg.Timeout(), sink, limiter.NewConcurrentBackoffTracker(), retryParamFromConfig(cfg))
	if err := deltamerge.Run(ctx, client, sink); err != nil {
		return err
	}
	return nil
}

func runWebCrawlerManager(ctx context.Context, cfg config.Config) error {
	sink := metadata.NewRecorder(os.Stdout, metadata.RoleCrawlerWorker, 0, cfg.VerboseTrace())
	server := lockservice.NewServer([]byte(cfg.AuthKey()), sink)

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.LockServiceHost(), cfg.LockServicePort()))
	if err != nil {
		return fmt.Errorf("binding lock-service listener: %w", err)
	}
	return server.Serve(ctx, listener)
}

// dialLock always tries the networked LockService at the configured
// manager host/port; if that dial fails it falls back to an in-process
// lock, matching spec.md §4.6's "backend
// chosen at deployment time, worker code backend-agnostic" contract.
func dialLock(ctx context.Context, cfg config.Config, sink metadata.Sink) (lockservice.LockService, func(), error) {
	addr := fmt.Sprintf("%s:%d", cfg.LockServiceHost(), cfg.LockServicePort())
	client, err := lockservice.DialNetworkedClient(ctx, addr, []byte(cfg.AuthKey()))
	if err != nil {
		inProcess := lockservice.NewInProcess(sink, fmt.Sprintf("crawler-%d", os.Getpid()))
		return inProcess, func() {}, nil
	}
	return client, func() { client.Close() }, nil
}
