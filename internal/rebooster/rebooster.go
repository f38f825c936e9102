// Package rebooster reapplies index-time field boosts to every
// domain-root document in the main collection. spec.md §4.8: page
// through main filtered to domain roots with content and a title, in
// batches of 100; recompute each doc's boost table; re-add with
// commit=false; commit once at the end.
//
// The eligibility rule is the one spec.md §8 property 10 states
// explicitly and E2E-3 exercises: a doc with a non-empty path is
// ineligible. §4.8's own closing sentence ("if a subdomain is present the
// doc is ineligible") cannot be read literally — E2E-3's own fixture has
// subdomain "www" and is still boosted — so it is treated here as
// describing the already-applied path filter, not an additional
// subdomain check.
package rebooster

import (
	"context"
	"time"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/failure"
)

const (
	pageSize    = 100
	rootsFilter = "domain:* AND -path:*"
)

// Primary covers subdomain ∈ {"", "www"}; secondary covers every other
// subdomain value.
const (
	boostDomainPrimary      = 5000
	boostMetaKeywordPrimary = 800
	boostTitlePrimary       = 350

	boostDomainSecondary     = 1000
	boostMetaKeywordSecondary = 400
	boostSubdomainSecondary   = 600
)

// versionField is the version-history field stripped before re-adding.
const versionField = "_version_"

// Run paginates the main collection once, reboosting every eligible
// domain-root doc, and commits once at the end.
func Run(ctx context.Context, client indexclient.Client, sink metadata.Sink) failure.ClassifiedError {
	start := 0
	for {
		page, err := client.Search(ctx, indexclient.CollectionMain, "*:*", indexclient.SearchParam{
			Filter: rootsFilter,
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

		for _, doc := range page.Docs {
			boostedDoc, ok := boost(doc)
			if !ok {
				continue
			}
			delete(boostedDoc, versionField)

			addErr := client.Add(ctx, indexclient.CollectionMain, []indexclient.Document{boostedDoc}, indexclient.AddParam{
				Overwrite: true,
				Commit:    false,
			})
			if addErr != nil {
				recordError(sink, "add", addErr.Error())
				return addErr
			}
		}

		start += len(page.Docs)
		if len(page.Docs) < pageSize {
			break
		}
	}

	if err := client.Commit(ctx, indexclient.CollectionMain); err != nil {
		recordError(sink, "commit", err.Error())
		return err
	}
	return nil
}

// boost returns doc with its boost fields recomputed, or ok=false if doc
// is ineligible (non-empty path — already excluded by rootsFilter, kept
// here as a defensive second check since Search implementations are
// external and may not honor the filter exactly).
func boost(doc indexclient.Document) (indexclient.Document, bool) {
	if path, _ := doc["path"].(string); path != "" {
		return nil, false
	}

	out := make(indexclient.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}

	subdomain, _ := doc["subdomain"].(string)
	if subdomain == "" || subdomain == "www" {
		out["boost"] = map[string]int{
			"domain":        boostDomainPrimary,
			"meta_keywords": boostMetaKeywordPrimary,
			"title":         boostTitlePrimary,
		}
		return out, true
	}

	out["boost"] = map[string]int{
		"domain":        boostDomainSecondary,
		"meta_keywords": boostMetaKeywordSecondary,
		"subdomain":     boostSubdomainSecondary,
	}
	return out, true
}

func recordError(sink metadata.Sink, action, msg string) {
	sink.RecordError(metadata.ErrorRecord{
		PackageName: "rebooster",
		Action:      action,
		Cause:       metadata.CauseStorageFailure,
		ErrorString: msg,
		ObservedAt:  time.Now(),
	})
}
