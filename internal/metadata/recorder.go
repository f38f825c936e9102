package metadata

import (
	"fmt"
	"io"
	"sync"
	"time"
)

/*
Metadata Collected
- Claim/fetch/publish/lock timestamps
- HTTP status codes
- Error causes and attributes
- Worker identifiers

Logging Goals
- Debuggable crawl and index behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred; a Recorder formats each event as one line
so it stays greppable in a shared log file.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Status codes
- Durations
- Identifiers (worker id, collection name, lock key)
*/

// Role names the kind of worker a Recorder is attached to, which selects
// the line-prefix a log line carries ("[WC:i]" / "[I:i]" / "[SCNR #ii]").
type Role int

const (
	RoleCrawlerWorker Role = iota
	RoleIndexerWorker
	RoleScanner
)

func (r Role) prefix(id int) string {
	switch r {
	case RoleIndexerWorker:
		return fmt.Sprintf("[I:%d]", id)
	case RoleScanner:
		return fmt.Sprintf("[SCNR #%d]", id)
	default:
		return fmt.Sprintf("[WC:%d]", id)
	}
}

// Sink is the narrow interface crawler, indexer, and lock-service
// collaborators depend on. It replaces the source's ambient global log
// mutex with a logger value threaded explicitly into each
// worker's constructor.
type Sink interface {
	RecordFetch(ev FetchEvent)
	RecordClaim(ev ClaimEvent)
	RecordPublish(ev PublishEvent)
	RecordLock(ev LockEvent)
	RecordError(rec ErrorRecord)
	Crawling(url string)
}

// Recorder is a Sink that serializes every event into one line written to
// w, guarded by an internal mutex so concurrent workers sharing one
// Recorder never interleave partial lines. verboseTrace controls whether
// RecordError appends the error's attribute list (the process-wide
// stack-trace flag enables).
type Recorder struct {
	mu           sync.Mutex
	w            io.Writer
	role         Role
	id           int
	verboseTrace bool
}

// NewRecorder builds a Recorder that prefixes every line with role/id and
// writes to w (typically an io.MultiWriter of stdout and a shared log
// file).
func NewRecorder(w io.Writer, role Role, id int, verboseTrace bool) *Recorder {
	return &Recorder{w: w, role: role, id: id, verboseTrace: verboseTrace}
}

func (r *Recorder) writeLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, r.role.prefix(r.id)+" "+line)
}

// Crawling emits the per-URL "Crawling url: …" line that is the only
// success-path output for a crawl attempt.
func (r *Recorder) Crawling(url string) {
	r.writeLine(fmt.Sprintf("Crawling url: %s", url))
}

func (r *Recorder) RecordFetch(ev FetchEvent) {
	r.writeLine(fmt.Sprintf("fetch url=%s status=%d duration=%s content_type=%q retries=%d",
		ev.FetchURL, ev.HTTPStatus, ev.Duration, ev.ContentType, ev.RetryCount))
}

func (r *Recorder) RecordClaim(ev ClaimEvent) {
	r.writeLine(fmt.Sprintf("claim worker=%d requested=%d claimed=%d", ev.WorkerID, ev.Requested, ev.Claimed))
}

func (r *Recorder) RecordPublish(ev PublishEvent) {
	r.writeLine(fmt.Sprintf("publish worker=%d collection=%s url=%s fields=%d", ev.WorkerID, ev.Collection, ev.URL, ev.Fields))
}

func (r *Recorder) RecordLock(ev LockEvent) {
	r.writeLine(fmt.Sprintf("lock key=%s holder=%s waiting=%d", ev.Key, ev.Holder, ev.Waiting))
}

// RecordError formats rec as a single line: the error taxonomy
// never crosses a worker boundary, so every call site passing an
// ErrorRecord has already decided the failure is non-fatal to the caller.
func (r *Recorder) RecordError(rec ErrorRecord) {
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now()
	}
	line := fmt.Sprintf("error package=%s action=%s cause=%s msg=%q", rec.PackageName, rec.Action, rec.Cause, rec.ErrorString)
	if r.verboseTrace {
		for _, a := range rec.Attrs {
			line += fmt.Sprintf(" %s=%s", a.Key, a.Value)
		}
	}
	r.writeLine(line)
}
