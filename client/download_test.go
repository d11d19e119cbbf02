package dsclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-dataspace-client/pkg/stac"
)

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	payload := make([]byte, n)
	_, err := rand.Read(payload)
	require.NoError(t, err)
	return payload
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// assetFor builds an asset pointing at href with declared size and sha256
// checksum in multihash form, the shape the Data Space catalog serves.
func assetFor(href string, payload []byte) *stac.Asset {
	return &stac.Asset{
		Href: href,
		AdditionalFields: map[string]any{
			"file:size":     float64(len(payload)),
			"file:checksum": "1220" + sha256Hex(payload),
		},
	}
}

// rangeHandler serves payload honoring single-range requests.
func rangeHandler(payload []byte, requests *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		offset := int64(0)
		if header := r.Header.Get("Range"); header != "" {
			var err error
			offset, err = strconv.ParseInt(header[len("bytes=") : len(header)-1], 10, 64)
			if err != nil || offset >= int64(len(payload)) {
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
				return
			}
			w.Header().Set("Content-Range",
				fmt.Sprintf("bytes %d-%d/%d", offset, len(payload)-1, len(payload)))
			w.WriteHeader(http.StatusPartialContent)
		}
		w.Write(payload[offset:])
	})
}

func TestDownloadFullTransferVerified(t *testing.T) {
	payload := randomPayload(t, 1000)
	var requests int32
	client := newTestClient(t, rangeHandler(payload, &requests))

	dest := filepath.Join(t.TempDir(), "product.zip")
	var lastDownloaded, lastTotal int64
	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Asset:       assetFor(client.baseURL.String()+"/odata/v1/product", payload),
		Destination: dest,
		Progress: func(downloaded, total int64) {
			lastDownloaded, lastTotal = downloaded, total
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, state.Status)
	assert.Equal(t, int64(1000), state.BytesWritten)
	assert.Equal(t, int64(1000), state.TotalBytes)
	assert.False(t, state.Resumed)
	assert.False(t, state.Unverified)
	assert.Equal(t, int64(1000), lastDownloaded)
	assert.Equal(t, int64(1000), lastTotal)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestDownloadResumesPartialFile(t *testing.T) {
	payload := randomPayload(t, 1000)
	var requests int32
	var rangeHeader atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader.Store(r.Header.Get("Range"))
		rangeHandler(payload, &requests).ServeHTTP(w, r)
	})
	client := newTestClient(t, handler)

	dest := filepath.Join(t.TempDir(), "product.zip")
	require.NoError(t, os.WriteFile(dest, payload[:400], 0o644))

	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Asset:       assetFor(client.baseURL.String()+"/odata/v1/product", payload),
		Destination: dest,
	})
	require.NoError(t, err)

	assert.Equal(t, "bytes=400-", rangeHeader.Load())
	assert.Equal(t, StatusComplete, state.Status)
	assert.True(t, state.Resumed)
	assert.Equal(t, int64(1000), state.BytesWritten)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestDownloadRestartsWhenRangeIgnored(t *testing.T) {
	payload := randomPayload(t, 1000)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always the full body, regardless of any Range header.
		w.Write(payload)
	})
	client := newTestClient(t, handler)

	dest := filepath.Join(t.TempDir(), "product.zip")
	// Seed bytes that do NOT match the payload prefix: only a restart from
	// zero can produce a verifiable file.
	require.NoError(t, os.WriteFile(dest, randomPayload(t, 400), 0o644))

	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Asset:       assetFor(client.baseURL.String()+"/product", payload),
		Destination: dest,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, state.Status)
	assert.False(t, state.Resumed)
	assert.Equal(t, int64(1000), state.BytesWritten)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestDownloadRestartsWhenPartialExceedsDeclaredSize(t *testing.T) {
	payload := randomPayload(t, 1000)
	var requests int32
	var sawRange atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			sawRange.Store(true)
		}
		rangeHandler(payload, &requests).ServeHTTP(w, r)
	})
	client := newTestClient(t, handler)

	dest := filepath.Join(t.TempDir(), "product.zip")
	require.NoError(t, os.WriteFile(dest, randomPayload(t, 1200), 0o644))

	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Asset:       assetFor(client.baseURL.String()+"/product", payload),
		Destination: dest,
	})
	require.NoError(t, err)

	// An oversized partial is corrupt: the transfer must start clean.
	assert.False(t, sawRange.Load())
	assert.Equal(t, StatusComplete, state.Status)
	assert.Equal(t, int64(1000), state.BytesWritten)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestDownloadResumesAfterMidStreamInterruption(t *testing.T) {
	payload := randomPayload(t, 1000)
	var requests int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			// Promise the full length but deliver half, then drop the
			// connection mid-body.
			w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
			w.Write(payload[:500])
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			panic(http.ErrAbortHandler)
		}
		rangeHandler(payload, &requests).ServeHTTP(w, r)
	})
	client := newTestClient(t, handler)

	dest := filepath.Join(t.TempDir(), "product.zip")
	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Asset:       assetFor(client.baseURL.String()+"/product", payload),
		Destination: dest,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, state.Status)
	assert.True(t, state.Resumed)
	assert.Equal(t, int64(1000), state.BytesWritten)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestDownloadChecksumMismatchRetainsFile(t *testing.T) {
	payload := randomPayload(t, 1000)
	var requests int32
	client := newTestClient(t, rangeHandler(payload, &requests))

	asset := assetFor(client.baseURL.String()+"/product", payload)
	asset.AdditionalFields["file:checksum"] = "1220" + sha256Hex([]byte("something else"))

	dest := filepath.Join(t.TempDir(), "product.zip")
	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Asset:       asset,
		Destination: dest,
	})
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Equal(t, StatusFailed, state.Status)

	// The transferred bytes stay on disk for inspection or retry.
	fi, statErr := os.Stat(dest)
	require.NoError(t, statErr)
	assert.Equal(t, int64(1000), fi.Size())
}

func TestDownloadWithoutIntegrityMetadataCompletesUnverified(t *testing.T) {
	payload := randomPayload(t, 256)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Length either: chunked body, size unknown end to end.
		w.(http.Flusher).Flush()
		w.Write(payload)
	})
	client := newTestClient(t, handler)

	dest := filepath.Join(t.TempDir(), "product.zip")
	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		URL:         client.baseURL.String() + "/product",
		Destination: dest,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, state.Status)
	assert.True(t, state.Unverified)
	assert.Equal(t, int64(256), state.BytesWritten)
}

func TestDownloadAlreadyCompleteVerifiesWithoutTransfer(t *testing.T) {
	payload := randomPayload(t, 512)
	var requests int32
	client := newTestClient(t, rangeHandler(payload, &requests))

	dest := filepath.Join(t.TempDir(), "product.zip")
	require.NoError(t, os.WriteFile(dest, payload, 0o644))

	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Asset:       assetFor(client.baseURL.String()+"/product", payload),
		Destination: dest,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, state.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests), "complete file must not be re-fetched")
}

func TestDownloadResolvesItemAsset(t *testing.T) {
	payload := randomPayload(t, 300)

	var itemHref string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/SENTINEL-2/items/S2A_0001":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{
				"type":"Feature","stac_version":"1.0.0","id":"S2A_0001",
				"geometry":null,"properties":{},"links":[],
				"assets":{"PRODUCT":{"href":%q,"file:size":%d,"file:checksum":%q}}
			}`, itemHref, len(payload), "1220"+sha256Hex(payload))
		case "/odata/v1/product":
			w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	})
	client := newTestClient(t, handler)
	itemHref = client.baseURL.String() + "/odata/v1/product"

	dest := filepath.Join(t.TempDir(), "S2A_0001.zip")
	state, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Collection:  "SENTINEL-2",
		ItemID:      "S2A_0001",
		Destination: dest,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, state.Status)
	assert.False(t, state.Unverified)
	assert.Equal(t, int64(300), state.BytesWritten)
}

func TestDownloadMissingAssetKey(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"Feature","stac_version":"1.0.0","id":"S2A_0001",
			"geometry":null,"properties":{},"links":[],"assets":{}}`))
	})
	client := newTestClient(t, handler)

	_, err := client.Downloads().Download(context.Background(), DownloadRequest{
		Collection:  "SENTINEL-2",
		ItemID:      "S2A_0001",
		Destination: filepath.Join(t.TempDir(), "out.zip"),
	})
	require.ErrorIs(t, err, ErrAssetNotFound)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://eodata/Sentinel-2/MSI/L2A/2026/01/S2A_0001/product.zip")
	require.NoError(t, err)
	assert.Equal(t, "eodata", bucket)
	assert.Equal(t, "Sentinel-2/MSI/L2A/2026/01/S2A_0001/product.zip", key)

	for name, href := range map[string]string{
		"wrong scheme":   "https://eodata/product.zip",
		"missing key":    "s3://eodata",
		"missing bucket": "s3:///Sentinel-2/product.zip",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := parseS3URL(href)
			assert.Error(t, err)
		})
	}
}

func TestRewriteDownloadHost(t *testing.T) {
	assert.Equal(t,
		"https://download.dataspace.copernicus.eu/odata/v1/Products(1)/$value",
		rewriteDownloadHost("https://catalogue.dataspace.copernicus.eu/odata/v1/Products(1)/$value"))
	assert.Equal(t,
		"https://zipper.dataspace.copernicus.eu/download/abc",
		rewriteDownloadHost("https://zipper.dataspace.copernicus.eu/download/abc"))
}
