// Package optimizer runs the periodic commit+optimize loop against the
// main collection. spec.md §4.7: sleep 5 minutes, commit then optimize;
// on any error, discard the client handle, sleep 10 minutes, and
// reinitialize on the next tick. The loop never terminates voluntarily.
package optimizer

import (
	"context"
	"time"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/timeutil"
)

const (
	tickInterval  = 5 * time.Minute
	errorInterval = 10 * time.Minute
)

// ClientFactory reinitializes an IndexClient handle. Optimizer calls it
// once at startup and again every time the previous handle's commit or
// optimize call fails, matching IndexClient's "scoped to one iteration,
// reinitialized by the caller" lifecycle.
type ClientFactory func() indexclient.Client

// Loop owns the reinit-on-error commit+optimize cycle.
type Loop struct {
	newClient ClientFactory
	sink      metadata.Sink
	sleeper   timeutil.Sleeper
}

func NewLoop(newClient ClientFactory, sink metadata.Sink) *Loop {
	return &Loop{
		newClient: newClient,
		sink:      sink,
		sleeper:   timeutil.NewRealSleeper(),
	}
}

// Run blocks until ctx is cancelled. It never returns on its own.
func (l *Loop) Run(ctx context.Context) {
	client := l.newClient()
	for {
		if ctx.Err() != nil {
			return
		}
		l.sleeper.Sleep(tickInterval)
		if ctx.Err() != nil {
			return
		}

		if err := client.Commit(ctx, indexclient.CollectionMain); err != nil {
			l.recordError("commit", err.Error())
			client = l.reinitAfterError(ctx)
			continue
		}
		if err := client.Optimize(ctx, indexclient.CollectionMain); err != nil {
			l.recordError("optimize", err.Error())
			client = l.reinitAfterError(ctx)
			continue
		}
	}
}

// reinitAfterError discards the failed handle, waits errorInterval, and
// builds a fresh one for the next tick.
func (l *Loop) reinitAfterError(ctx context.Context) indexclient.Client {
	l.sleeper.Sleep(errorInterval)
	return l.newClient()
}

func (l *Loop) recordError(action, msg string) {
	l.sink.RecordError(metadata.ErrorRecord{
		PackageName: "optimizer",
		Action:      action,
		Cause:       metadata.CauseStorageFailure,
		ErrorString: msg,
		ObservedAt:  time.Now(),
	})
}
