package indexclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edmiester777/search-engine/internal/indexclient"
	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/limiter"
	"github.com/edmiester777/search-engine/pkg/retry"
	"github.com/edmiester777/search-engine/pkg/timeutil"
)

type recordingSink struct {
	errors []metadata.ErrorRecord
}

func (r *recordingSink) RecordFetch(metadata.FetchEvent)     {}
func (r *recordingSink) RecordClaim(metadata.ClaimEvent)     {}
func (r *recordingSink) RecordPublish(metadata.PublishEvent) {}
func (r *recordingSink) RecordLock(metadata.LockEvent)       {}
func (r *recordingSink) RecordError(rec metadata.ErrorRecord) {
	r.errors = append(r.errors, rec)
}
func (r *recordingSink) Crawling(string) {}

var _ metadata.Sink = &recordingSink{}

func newTestRetryParam() retry.RetryParam {
	backoffParam := timeutil.NewBackoffParam(time.Millisecond, 1.0, 5*time.Millisecond)
	return retry.NewRetryParam(time.Millisecond, 0, 1, 2, backoffParam)
}

func newTestClient(t *testing.T, serverURL string, workerID int, sink metadata.Sink) *indexclient.HTTPClient {
	t.Helper()
	endpoints := indexclient.Endpoints{
		Working: []string{serverURL, serverURL},
		Main:    []string{serverURL},
	}
	backoff := limiter.NewConcurrentBackoffTracker()
	return indexclient.NewHTTPClient(endpoints, workerID, 5*time.Second, sink, backoff, newTestRetryParam())
}

func TestHTTPClient_Add_Success(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server.URL, 0, sink)

	docs := []indexclient.Document{{"id": "a"}}
	err := client.Add(context.Background(), indexclient.CollectionWorking, docs, indexclient.AddParam{Overwrite: true, Commit: true})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if gotPath != "/working/update" {
		t.Fatalf("expected path /working/update, got %q", gotPath)
	}
	if gotBody["overwrite"] != true {
		t.Fatalf("expected overwrite=true in request body, got %v", gotBody["overwrite"])
	}
}

func TestHTTPClient_Delete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server.URL, 0, sink)

	err := client.Delete(context.Background(), indexclient.CollectionMain, "doc-1", indexclient.DeleteParam{Commit: true})
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
}

func TestHTTPClient_Commit_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server.URL, 0, sink)

	if err := client.Commit(context.Background(), indexclient.CollectionWorking); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
}

func TestHTTPClient_Optimize_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server.URL, 0, sink)

	if err := client.Optimize(context.Background(), indexclient.CollectionMain); err != nil {
		t.Fatalf("Optimize returned error: %v", err)
	}
}

func TestHTTPClient_Search_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "golang" {
			t.Errorf("expected q=golang, got %q", r.URL.Query().Get("q"))
		}
		page := indexclient.SearchPage{
			Docs:     []indexclient.Document{{"id": "a"}, {"id": "b"}},
			NumFound: 2,
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server.URL, 0, sink)

	page, err := client.Search(context.Background(), indexclient.CollectionMain, "golang", indexclient.SearchParam{Rows: 10})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if page.NumFound != 2 || len(page.Docs) != 2 {
		t.Fatalf("unexpected search page: %+v", page)
	}
}

func TestHTTPClient_Add_ServerErrorRetriesThenFails(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server.URL, 0, sink)

	err := client.Add(context.Background(), indexclient.CollectionWorking, nil, indexclient.AddParam{})
	if err == nil {
		t.Fatal("expected error from Add, got nil")
	}
	if err.Severity() != failure.SeverityRecoverable {
		t.Fatalf("expected recoverable error, got %+v", err)
	}
	if attempts < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
	if len(sink.errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(sink.errors))
	}
	if sink.errors[0].Cause != metadata.CauseNetworkFailure {
		t.Fatalf("expected CauseNetworkFailure, got %v", sink.errors[0].Cause)
	}
}

func TestHTTPClient_Add_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server.URL, 0, sink)

	err := client.Delete(context.Background(), indexclient.CollectionWorking, "x", indexclient.DeleteParam{})
	if err == nil {
		t.Fatal("expected error from Delete, got nil")
	}
	if err.Severity() != failure.SeverityFatal {
		t.Fatalf("expected fatal error, got %+v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestHTTPClient_Search_DecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := newTestClient(t, server.URL, 0, sink)

	_, err := client.Search(context.Background(), indexclient.CollectionWorking, "q", indexclient.SearchParam{})
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}
	if len(sink.errors) != 1 || sink.errors[0].Cause != metadata.CauseStorageFailure {
		t.Fatalf("expected 1 CauseStorageFailure record, got %+v", sink.errors)
	}
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	sink := &recordingSink{}
	client := newTestClient(t, "http://127.0.0.1:1", 0, sink)

	err := client.Commit(context.Background(), indexclient.CollectionWorking)
	if err == nil {
		t.Fatal("expected connection error, got nil")
	}
	if err.Severity() != failure.SeverityRecoverable {
		t.Fatalf("expected recoverable connection error, got %+v", err)
	}
}

func TestHTTPClient_WorkerIDSelectsEndpointByModulo(t *testing.T) {
	var hits []string
	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, "a")
		w.WriteHeader(http.StatusOK)
	}))
	defer serverA.Close()
	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, "b")
		w.WriteHeader(http.StatusOK)
	}))
	defer serverB.Close()

	endpoints := indexclient.Endpoints{Working: []string{serverA.URL, serverB.URL}}
	sink := &recordingSink{}
	backoff := limiter.NewConcurrentBackoffTracker()

	client0 := indexclient.NewHTTPClient(endpoints, 0, time.Second, sink, backoff, newTestRetryParam())
	client1 := indexclient.NewHTTPClient(endpoints, 1, time.Second, sink, backoff, newTestRetryParam())
	client2 := indexclient.NewHTTPClient(endpoints, 2, time.Second, sink, backoff, newTestRetryParam())

	_ = client0.Commit(context.Background(), indexclient.CollectionWorking)
	_ = client1.Commit(context.Background(), indexclient.CollectionWorking)
	_ = client2.Commit(context.Background(), indexclient.CollectionWorking)

	if len(hits) != 3 || hits[0] != "a" || hits[1] != "b" || hits[2] != "a" {
		t.Fatalf("expected round-robin hits [a b a], got %v", hits)
	}
}

func TestHTTPClient_NoEndpointsConfigured(t *testing.T) {
	endpoints := indexclient.Endpoints{}
	sink := &recordingSink{}
	backoff := limiter.NewConcurrentBackoffTracker()
	client := indexclient.NewHTTPClient(endpoints, 0, time.Second, sink, backoff, newTestRetryParam())

	err := client.Commit(context.Background(), indexclient.CollectionWorking)
	if err == nil {
		t.Fatal("expected error for unconfigured collection, got nil")
	}
	if err.Severity() != failure.SeverityFatal {
		t.Fatalf("expected fatal error, got %+v", err)
	}
}
