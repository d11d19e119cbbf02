package dsclient

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/robert-malhotra/go-dataspace-client/pkg/stac"
)

// ProgressFunc reports cumulative bytes downloaded and the expected total.
// total is 0 when the catalog and server declare no size.
type ProgressFunc func(downloaded, total int64)

// DownloadStatus enumerates the states of one download invocation.
type DownloadStatus string

const (
	// StatusPending means no bytes have been requested yet.
	StatusPending DownloadStatus = "pending"
	// StatusInProgress means bytes are streaming to the destination.
	StatusInProgress DownloadStatus = "in_progress"
	// StatusVerifying means the transfer finished and integrity checks run.
	StatusVerifying DownloadStatus = "verifying"
	// StatusComplete is terminal: the file is fully written and verified as
	// far as declared metadata allows.
	StatusComplete DownloadStatus = "complete"
	// StatusFailed is terminal: the transfer or its verification failed. The
	// on-disk file is retained for inspection and retry.
	StatusFailed DownloadStatus = "failed"
)

// DownloadState tracks one download invocation. It is owned exclusively by
// that invocation; callers running concurrent downloads must route them to
// distinct destinations.
type DownloadState struct {
	Destination  string
	URL          string
	BytesWritten int64
	// TotalBytes is the declared or advertised full size, 0 when unknown.
	TotalBytes int64
	Status     DownloadStatus
	// Resumed is set when an existing partial file was continued via a range
	// request instead of restarting from zero.
	Resumed bool
	// Unverified is set on completion when neither a checksum nor a declared
	// size was available to check the bytes against.
	Unverified bool
}

// DownloadRequest names what to fetch and where to put it. Exactly one of
// URL, Asset, or ItemID selects the source.
type DownloadRequest struct {
	// URL downloads a direct asset URL with no catalog resolution.
	URL string
	// Asset downloads a previously resolved asset, using its declared size
	// and checksum for resume and verification.
	Asset *stac.Asset
	// ItemID (with optional Collection) resolves the item through the
	// catalog first.
	ItemID     string
	Collection string
	// AssetKey picks the asset on a resolved item. Defaults to "PRODUCT",
	// the imagery bundle key used by the Data Space.
	AssetKey string

	Destination string
	Progress    ProgressFunc
}

// DefaultAssetKey is the asset downloaded when a request names only an item.
const DefaultAssetKey = "PRODUCT"

// DownloadService retrieves item assets to local storage with resume and
// integrity verification.
type DownloadService struct {
	client *Client
}

// Download resolves the requested asset and streams it to the destination.
// An existing partial file at the destination is resumed via a range request
// when the server supports it; a partial larger than the declared size is
// treated as corrupt and restarted from zero. The returned state is also
// populated on failure, alongside the error.
func (s *DownloadService) Download(ctx context.Context, req DownloadRequest) (*DownloadState, error) {
	state := &DownloadState{Destination: req.Destination, Status: StatusPending}
	if req.Destination == "" {
		state.Status = StatusFailed
		return state, errors.New("dsclient: download destination is required")
	}

	href, sum, declaredSize, err := s.resolve(ctx, req)
	if err != nil {
		state.Status = StatusFailed
		return state, err
	}
	state.URL = href
	state.TotalBytes = declaredSize

	u, err := url.Parse(href)
	if err != nil {
		state.Status = StatusFailed
		return state, fmt.Errorf("dsclient: parse asset URL: %w", err)
	}

	// Existing bytes at the destination are the resume signal.
	if fi, statErr := os.Stat(req.Destination); statErr == nil {
		existing := fi.Size()
		switch {
		case declaredSize > 0 && existing > declaredSize:
			// More bytes than the asset declares: corrupt, restart.
			if err := os.Truncate(req.Destination, 0); err != nil {
				state.Status = StatusFailed
				return state, fmt.Errorf("dsclient: reset corrupt partial: %w", err)
			}
		case declaredSize > 0 && existing == declaredSize:
			state.BytesWritten = existing
			return s.verify(state, sum)
		case existing > 0:
			state.BytesWritten = existing
		}
	}

	switch u.Scheme {
	case "http", "https":
		err = s.fetchWithResume(ctx, state, href, req.Progress, s.fetchHTTP)
	case "s3":
		err = s.fetchWithResume(ctx, state, href, req.Progress, s.fetchS3)
	default:
		err = fmt.Errorf("dsclient: unsupported URL scheme: %s", u.Scheme)
	}
	if err != nil {
		state.Status = StatusFailed
		return state, err
	}

	return s.verify(state, sum)
}

// resolve turns a DownloadRequest into a concrete URL plus integrity metadata.
func (s *DownloadService) resolve(ctx context.Context, req DownloadRequest) (string, stac.Checksum, int64, error) {
	asset := req.Asset
	switch {
	case asset != nil:
	case req.URL != "":
		return req.URL, stac.Checksum{}, 0, nil
	case req.ItemID != "":
		item, err := s.lookupItem(ctx, req.Collection, req.ItemID)
		if err != nil {
			return "", stac.Checksum{}, 0, fmt.Errorf("dsclient: resolve item %q: %w", req.ItemID, err)
		}
		key := req.AssetKey
		if key == "" {
			key = DefaultAssetKey
		}
		asset = item.Asset(key)
		if asset == nil {
			return "", stac.Checksum{}, 0, fmt.Errorf("%w: item=%s asset=%s", ErrAssetNotFound, req.ItemID, key)
		}
	default:
		return "", stac.Checksum{}, 0, errors.New("dsclient: download request names no source")
	}

	if asset.Href == "" {
		return "", stac.Checksum{}, 0, fmt.Errorf("%w: asset has no href", ErrAssetNotFound)
	}
	sum, _ := asset.Checksum()
	return rewriteDownloadHost(asset.Href), sum, asset.SizeBytes(), nil
}

func (s *DownloadService) lookupItem(ctx context.Context, collection, id string) (*stac.Item, error) {
	if collection != "" {
		return s.client.Items().GetOne(ctx, collection, id)
	}
	// Without a collection the only handle the catalog offers is an id
	// search.
	page, err := s.client.Search().GetPage(ctx, SearchParams{IDs: []string{id}, Limit: 1})
	if err != nil {
		return nil, err
	}
	for _, item := range page.Items {
		if item != nil && item.Id == id {
			return item, nil
		}
	}
	return nil, fmt.Errorf("item %q not found", id)
}

// rewriteDownloadHost maps catalogue hosts to their download counterpart.
// The Data Space serves asset hrefs on the catalogue subdomain but only
// honors authenticated retrieval on the download subdomain.
func rewriteDownloadHost(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if host, found := strings.CutPrefix(u.Host, "catalogue."); found {
		u.Host = "download." + host
		return u.String()
	}
	return href
}

// fetchFunc performs one transfer attempt starting at state.BytesWritten.
// It reports whether a failure is worth another attempt from the new offset.
type fetchFunc func(ctx context.Context, state *DownloadState, href string, progress ProgressFunc) (retryable bool, err error)

// fetchWithResume drives transfer attempts, resuming from the bytes already
// on disk after each transient interruption, bounded by the same attempt
// budget as the transport retry policy.
func (s *DownloadService) fetchWithResume(ctx context.Context, state *DownloadState, href string, progress ProgressFunc, fetch fetchFunc) error {
	maxAttempts := 4
	backoff := BackoffPolicy{MaxAttempts: maxAttempts, BaseDelay: 500 * time.Millisecond, MaxDelay: 16 * time.Second}
	if bp, ok := s.client.retryPolicy.(BackoffPolicy); ok {
		maxAttempts = bp.MaxAttempts
		backoff = bp
	}

	for attempt := 1; ; attempt++ {
		retryable, err := fetch(ctx, state, href, progress)
		if err == nil {
			return nil
		}
		if !retryable || attempt >= maxAttempts {
			if retryable {
				return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt, err)
			}
			return err
		}
		if s.client.logger != nil {
			s.client.logger.Debugf("dsclient: download interrupted at %d bytes, resuming (attempt %d): %v", state.BytesWritten, attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff.delay(attempt, nil)):
		}
	}
}

func (s *DownloadService) fetchHTTP(ctx context.Context, state *DownloadState, href string, progress ProgressFunc) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return false, fmt.Errorf("dsclient: build download request: %w", err)
	}
	for key, values := range s.client.defaultHeaders {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	offset := state.BytesWritten
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := s.client.do(ctx, req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusRequestedRangeNotSatisfiable {
			// Our offset no longer matches the resource; restart clean.
			if truncErr := s.restart(state); truncErr != nil {
				return false, truncErr
			}
			return true, fmt.Errorf("dsclient: range rejected, restarting: %w", err)
		}
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		state.Resumed = true
	case offset > 0 && resp.StatusCode == http.StatusOK:
		// Server ignored the range request: full body follows.
		if err := s.restart(state); err != nil {
			return false, err
		}
		offset = 0
	}

	if state.TotalBytes == 0 && resp.ContentLength > 0 {
		state.TotalBytes = offset + resp.ContentLength
	}

	return s.sink(ctx, state, resp.Body, progress)
}

// parseS3URL splits an s3://bucket/key href into bucket and object key.
func parseS3URL(href string) (bucket, key string, err error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", "", fmt.Errorf("dsclient: parse s3 URL: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("dsclient: not an s3 URL: %s", href)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("dsclient: s3 URL missing bucket or key: %s", href)
	}
	return bucket, key, nil
}

func (s *DownloadService) fetchS3(ctx context.Context, state *DownloadState, href string, progress ProgressFunc) (bool, error) {
	bucket, key, err := parseS3URL(href)
	if err != nil {
		return false, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return false, fmt.Errorf("dsclient: load AWS config: %w", err)
	}
	s3Client := s3.NewFromConfig(cfg)

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	offset := state.BytesWritten
	if offset > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
		state.Resumed = true
	}

	result, err := s3Client.GetObject(ctx, input)
	if err != nil {
		return true, fmt.Errorf("dsclient: s3 get object: %w", err)
	}
	defer result.Body.Close()

	if state.TotalBytes == 0 && result.ContentLength != nil && *result.ContentLength > 0 {
		state.TotalBytes = offset + *result.ContentLength
	}

	return s.sink(ctx, state, result.Body, progress)
}

// restart discards any partial bytes at the destination.
func (s *DownloadService) restart(state *DownloadState) error {
	if err := os.Truncate(state.Destination, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("dsclient: reset partial file: %w", err)
	}
	state.BytesWritten = 0
	state.Resumed = false
	return nil
}

// sink appends the body to the destination starting at state.BytesWritten,
// keeping the state's byte count live for progress observers. Read-side
// failures are retryable (the bytes written so far stay on disk); write-side
// failures are not.
func (s *DownloadService) sink(ctx context.Context, state *DownloadState, body io.Reader, progress ProgressFunc) (bool, error) {
	out, err := os.OpenFile(state.Destination, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("dsclient: open destination: %w", err)
	}
	defer out.Close()

	if _, err := out.Seek(state.BytesWritten, io.SeekStart); err != nil {
		return false, fmt.Errorf("dsclient: seek destination: %w", err)
	}

	state.Status = StatusInProgress
	if progress != nil {
		progress(state.BytesWritten, state.TotalBytes)
	}

	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			w, writeErr := out.Write(buf[:n])
			state.BytesWritten += int64(w)
			if progress != nil {
				progress(state.BytesWritten, state.TotalBytes)
			}
			if writeErr != nil {
				return false, fmt.Errorf("dsclient: write destination: %w", writeErr)
			}
			if w != n {
				return false, io.ErrShortWrite
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return true, fmt.Errorf("dsclient: read asset body: %w", readErr)
		}
	}

	if state.TotalBytes > 0 && state.BytesWritten < state.TotalBytes {
		// Clean EOF short of the advertised size: resume from here.
		return true, fmt.Errorf("dsclient: stream ended at %d of %d bytes", state.BytesWritten, state.TotalBytes)
	}
	return false, nil
}

// verify runs the integrity checks the asset metadata allows. The file is
// never deleted on failure; callers inspect or retry with the partial in
// place.
func (s *DownloadService) verify(state *DownloadState, sum stac.Checksum) (*DownloadState, error) {
	state.Status = StatusVerifying

	if state.TotalBytes > 0 && state.BytesWritten != state.TotalBytes {
		state.Status = StatusFailed
		return state, fmt.Errorf("%w: %s has %d bytes, expected %d", ErrSizeMismatch, state.Destination, state.BytesWritten, state.TotalBytes)
	}

	if sum.Digest != "" {
		digester := newDigester(sum.Algorithm)
		if digester == nil {
			// Algorithm we cannot compute; accept the bytes unverified.
			state.Unverified = true
			state.Status = StatusComplete
			return state, nil
		}
		f, err := os.Open(state.Destination)
		if err != nil {
			state.Status = StatusFailed
			return state, fmt.Errorf("dsclient: open for verification: %w", err)
		}
		defer f.Close()
		if _, err := io.Copy(digester, f); err != nil {
			state.Status = StatusFailed
			return state, fmt.Errorf("dsclient: read for verification: %w", err)
		}
		got := hex.EncodeToString(digester.Sum(nil))
		if got != sum.Digest {
			state.Status = StatusFailed
			return state, fmt.Errorf("%w: %s %s != %s", ErrChecksumMismatch, sum.Algorithm, got, sum.Digest)
		}
		state.Status = StatusComplete
		return state, nil
	}

	if state.TotalBytes == 0 {
		state.Unverified = true
	}
	state.Status = StatusComplete
	return state, nil
}

func newDigester(algorithm string) hash.Hash {
	switch algorithm {
	case "sha256":
		return sha256.New()
	case "md5":
		return md5.New()
	default:
		return nil
	}
}
