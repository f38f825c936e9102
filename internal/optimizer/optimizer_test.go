package optimizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/failure"
)

type fakeClient struct {
	mu          sync.Mutex
	commitErr   failure.ClassifiedError
	optimizeErr failure.ClassifiedError
	commits     int
	optimizes   int
}

func (f *fakeClient) Add(context.Context, indexclient.Collection, []indexclient.Document, indexclient.AddParam) failure.ClassifiedError {
	return nil
}

func (f *fakeClient) Delete(context.Context, indexclient.Collection, string, indexclient.DeleteParam) failure.ClassifiedError {
	return nil
}

func (f *fakeClient) Commit(context.Context, indexclient.Collection) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return f.commitErr
}

func (f *fakeClient) Optimize(context.Context, indexclient.Collection) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optimizes++
	return f.optimizeErr
}

func (f *fakeClient) Search(context.Context, indexclient.Collection, string, indexclient.SearchParam) (indexclient.SearchPage, failure.ClassifiedError) {
	return indexclient.SearchPage{}, nil
}

var _ indexclient.Client = (*fakeClient)(nil)

type noopSink struct{}

func (noopSink) RecordFetch(metadata.FetchEvent)     {}
func (noopSink) RecordClaim(metadata.ClaimEvent)     {}
func (noopSink) RecordPublish(metadata.PublishEvent) {}
func (noopSink) RecordLock(metadata.LockEvent)       {}
func (noopSink) RecordError(metadata.ErrorRecord)    {}
func (noopSink) Crawling(string)                     {}

var _ metadata.Sink = noopSink{}

// blockingSleeper never actually sleeps; it calls stop after hitting
// the tick budget, cancelling the loop's context from within Run.
type blockingSleeper struct {
	mu     sync.Mutex
	budget int
	cancel context.CancelFunc
}

func (s *blockingSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget--
	if s.budget <= 0 {
		s.cancel()
	}
}

func TestLoop_CommitsAndOptimizesEachTick(t *testing.T) {
	client := &fakeClient{}
	built := 0
	factory := func() indexclient.Client {
		built++
		return client
	}

	loop := NewLoop(factory, noopSink{})
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := &blockingSleeper{budget: 3, cancel: cancel}
	loop.sleeper = sleeper

	loop.Run(ctx)

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.commits == 0 || client.optimizes == 0 {
		t.Fatalf("expected at least one commit and optimize, got commits=%d optimizes=%d", client.commits, client.optimizes)
	}
	if built != 1 {
		t.Fatalf("expected client built once on the error-free path, got %d", built)
	}
}

func TestLoop_ReinitsClientOnCommitError(t *testing.T) {
	failing := &fakeClient{commitErr: &indexclient.IndexError{Message: "boom", Retryable: true}}
	healthy := &fakeClient{}
	calls := 0
	factory := func() indexclient.Client {
		calls++
		if calls == 1 {
			return failing
		}
		return healthy
	}

	loop := NewLoop(factory, noopSink{})
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := &blockingSleeper{budget: 4, cancel: cancel}
	loop.sleeper = sleeper

	loop.Run(ctx)

	if calls < 2 {
		t.Fatalf("expected factory invoked again after commit error, got %d calls", calls)
	}
}
