// Package deltamerge drains newly-populated documents from the working
// collection into main under a snapshot-time cutoff, then invokes the
// rebooster once. spec.md §4.9: run once then exit; never re-entrant,
// never scheduled internally.
package deltamerge

import (
	"context"
	"strconv"
	"time"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/internal/rebooster"
	"github.com/edmiester777/search-engine/pkg/failure"
)

const pageSize = 500

// versionField is the version-history field stripped before a document
// is promoted into main.
const versionField = "_version_"

// Run snapshots the current epoch, migrates every working doc with
// last_update_time in [0, T] and a non-empty domain into main, stamps a
// migration receipt on the working side, and runs the rebooster once at
// the end. Writes are batched without a commit per page; the single
// commit at the end follows spec.md §4.9's literal text over the
// original implementation's per-page commit (see DESIGN.md).
func Run(ctx context.Context, client indexclient.Client, sink metadata.Sink) failure.ClassifiedError {
	cutoff := time.Now().Unix()
	filter := buildFilter(cutoff)
	// receiptTime must be strictly greater than cutoff (spec.md §8
	// property 11); +1 guarantees that regardless of how fast this run
	// executes relative to one-second Unix-time resolution.
	receiptTime := cutoff + 1

	start := 0
	for {
		page, err := client.Search(ctx, indexclient.CollectionWorking, "*:*", indexclient.SearchParam{
			Filter: filter,
			Rows:   pageSize,
			Start:  start,
		})
		if err != nil {
			recordError(sink, "search", err.Error())
			return err
		}
		if len(page.Docs) == 0 {
			break
		}

		mainUpdates, workingUpdates := split(page.Docs, receiptTime)

		if len(mainUpdates) > 0 {
			if addErr := client.Add(ctx, indexclient.CollectionMain, mainUpdates, indexclient.AddParam{Overwrite: true, Commit: false}); addErr != nil {
				recordError(sink, "add-main", addErr.Error())
				return addErr
			}
		}
		if len(workingUpdates) > 0 {
			if addErr := client.Add(ctx, indexclient.CollectionWorking, workingUpdates, indexclient.AddParam{Overwrite: true, Commit: false}); addErr != nil {
				recordError(sink, "add-working", addErr.Error())
				return addErr
			}
		}

		start += len(page.Docs)
		if len(page.Docs) < pageSize {
			break
		}
	}

	if err := client.Commit(ctx, indexclient.CollectionWorking); err != nil {
		recordError(sink, "commit-working", err.Error())
		return err
	}
	if err := client.Commit(ctx, indexclient.CollectionMain); err != nil {
		recordError(sink, "commit-main", err.Error())
		return err
	}

	if err := rebooster.Run(ctx, client, sink); err != nil {
		recordError(sink, "rebooster", err.Error())
		return err
	}
	return nil
}

// split partitions one page of working docs into the main-collection
// promotion set and the working-collection migration receipt set.
func split(docs []indexclient.Document, receiptTime int64) (mainUpdates, workingUpdates []indexclient.Document) {
	for _, doc := range docs {
		id, _ := doc["id"].(string)

		domain, _ := doc["domain"].(string)
		content, _ := doc["content"].(string)
		if domain != "" && content != "" {
			promoted := make(indexclient.Document, len(doc))
			for k, v := range doc {
				promoted[k] = v
			}
			delete(promoted, versionField)
			delete(promoted, "last_update_time")
			mainUpdates = append(mainUpdates, promoted)
		}

		isHTTPS, _ := doc["is_https"].(bool)
		workingUpdates = append(workingUpdates, indexclient.Document{
			"id":               id,
			"is_https":         isHTTPS,
			"last_update_time": receiptTime,
		})
	}
	return mainUpdates, workingUpdates
}

func buildFilter(cutoff int64) string {
	return "last_update_time:[0 TO " + strconv.FormatInt(cutoff, 10) + "] AND domain:*"
}

func recordError(sink metadata.Sink, action, msg string) {
	sink.RecordError(metadata.ErrorRecord{
		PackageName: "deltamerge",
		Action:      action,
		Cause:       metadata.CauseStorageFailure,
		ErrorString: msg,
		ObservedAt:  time.Now(),
	})
}
