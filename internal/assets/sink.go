// Package assets implements the optional, default-disabled image-download
// sink: it consumes the raw image URLs tokenizer.Accumulator collects
// from a page's EventImage stream, fetches each one with retry, and
// writes it to a content-addressed local directory. It is adapted from
// the teacher's markdown asset resolver, which performed the same
// fetch/hash/dedup/write sequence against a different document model
// (converted Markdown image references rather than tokenizer events).
// Missing assets are reported through the metadata.Sink, never fatal:
// a page's indexing never depends on its images having downloaded.
package assets

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/edmiester777/search-engine/internal/metadata"
	"github.com/edmiester777/search-engine/pkg/canon"
	"github.com/edmiester777/search-engine/pkg/failure"
	"github.com/edmiester777/search-engine/pkg/fileutil"
	"github.com/edmiester777/search-engine/pkg/hashutil"
	"github.com/edmiester777/search-engine/pkg/retry"
)

// maxAssetSize bounds how much of one image body the sink will read,
// protecting against an absent or lying Content-Length.
const maxAssetSize = 10 << 20 // 10MiB

// Sink downloads the images a page references into dir, deduplicating
// by content hash across the whole run. A nil or disabled Sink's
// Process is a no-op, so callers can wire it in unconditionally and let
// config gate the behavior.
type Sink struct {
	enabled    bool
	dir        string
	userAgent  string
	httpClient *http.Client
	retryParam retry.RetryParam
	metaSink   metadata.Sink

	mu         sync.Mutex
	writtenFor map[string]string // canonical image URL -> content hash
}

// NewSink builds an image sink. enabled/dir mirror
// config.Config.ImageSinkEnabled/ImageSinkDir directly.
func NewSink(enabled bool, dir string, userAgent string, timeout time.Duration, retryParam retry.RetryParam, metaSink metadata.Sink) *Sink {
	return &Sink{
		enabled:    enabled,
		dir:        dir,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		retryParam: retryParam,
		metaSink:   metaSink,
		writtenFor: make(map[string]string),
	}
}

// Process fetches and stores every image URL referenced by pageURL's
// content. raw image URLs may be relative; they are canonicalized
// against pageURL the same way a discovered link would be.
func (s *Sink) Process(ctx context.Context, pageURL url.URL, rawImageURLs []string) {
	if s == nil || !s.enabled || len(rawImageURLs) == 0 {
		return
	}

	for _, raw := range rawImageURLs {
		canonical, ok := canon.Canonicalize(raw, pageURL.String())
		if !ok {
			continue
		}
		s.fetchOne(ctx, pageURL, canonical)
	}
}

func (s *Sink) fetchOne(ctx context.Context, pageURL url.URL, imageURL string) {
	s.mu.Lock()
	_, already := s.writtenFor[imageURL]
	s.mu.Unlock()
	if already {
		return
	}

	fetchTask := func() ([]byte, failure.ClassifiedError) {
		return s.fetch(ctx, imageURL)
	}
	result := retry.Retry(s.retryParam, fetchTask)
	if result.IsFailure() {
		s.recordError(pageURL, imageURL, result.Err())
		return
	}

	data := result.Value()
	hash, hashErr := hashutil.HashBytes(data, hashutil.HashAlgoSHA256)
	if hashErr != nil {
		s.recordError(pageURL, imageURL, &AssetError{Message: hashErr.Error(), Retryable: false, Cause: ErrCausePathError})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.writtenFor[imageURL]; exists {
		return
	}
	if err := s.write(hash, extensionOf(imageURL), data); err != nil {
		s.recordError(pageURL, imageURL, err)
		return
	}
	s.writtenFor[imageURL] = hash
}

func (s *Sink) fetch(ctx context.Context, imageURL string) ([]byte, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &AssetError{Message: err.Error(), Retryable: false, Cause: ErrCauseNetworkFailure}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &AssetError{Message: err.Error(), Retryable: true, Cause: ErrCauseNetworkFailure}
	}
	defer resp.Body.Close()

	if resp.ContentLength > maxAssetSize {
		return nil, &AssetError{Message: "content-length exceeds limit", Retryable: false, Cause: ErrCauseAssetTooLarge}
	}
	if resp.StatusCode >= 400 {
		return nil, &AssetError{Message: resp.Status, Retryable: resp.StatusCode >= 500, Cause: ErrCauseNetworkFailure}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, &AssetError{Message: err.Error(), Retryable: true, Cause: ErrCauseNetworkFailure}
	}
	if len(body) > maxAssetSize {
		return nil, &AssetError{Message: "body exceeds limit", Retryable: false, Cause: ErrCauseAssetTooLarge}
	}
	return body, nil
}

func (s *Sink) write(hash string, extension string, data []byte) failure.ClassifiedError {
	if err := fileutil.EnsureDir(s.dir, "images"); err != nil {
		return err
	}
	name := hash
	if extension != "" {
		name = hash + "." + extension
	}
	path := filepath.Join(s.dir, "images", name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &AssetError{Message: err.Error(), Retryable: false, Cause: ErrCauseWriteFailure}
	}
	return nil
}

func (s *Sink) recordError(pageURL url.URL, imageURL string, err failure.ClassifiedError) {
	s.metaSink.RecordError(metadata.ErrorRecord{
		PackageName: "assets",
		Action:      "Process/fetch",
		Cause:       mapAssetErrorToMetadataCause(err),
		ErrorString: err.Error(),
		ObservedAt:  time.Now(),
		Attrs: []metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, pageURL.String()),
			metadata.NewAttr(metadata.AttrWritePath, imageURL),
		},
	})
}

func mapAssetErrorToMetadataCause(err failure.ClassifiedError) metadata.ErrorCause {
	assetErr, ok := err.(*AssetError)
	if !ok {
		return metadata.CauseUnknown
	}
	switch assetErr.Cause {
	case ErrCauseNetworkFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseAssetTooLarge:
		return metadata.CauseContentInvalid
	case ErrCauseWriteFailure, ErrCausePathError:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}

func extensionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(filepath.Ext(u.Path), ".")
}
