package dsclient

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBaseURL is returned when a base URL option is invalid.
	ErrInvalidBaseURL = errors.New("dsclient: invalid base URL")
	// ErrNilHTTPClient indicates a nil HTTP client was provided.
	ErrNilHTTPClient = errors.New("dsclient: http client cannot be nil")
	// ErrRetriesExhausted indicates a transient failure persisted past the
	// retry attempt budget.
	ErrRetriesExhausted = errors.New("dsclient: retries exhausted")
	// ErrChecksumMismatch indicates downloaded bytes did not match the
	// checksum declared by the catalog. The partial file is retained.
	ErrChecksumMismatch = errors.New("dsclient: checksum mismatch")
	// ErrSizeMismatch indicates a completed download whose on-disk size does
	// not match the declared asset size.
	ErrSizeMismatch = errors.New("dsclient: size mismatch")
	// ErrAssetNotFound is returned when an item does not carry the requested
	// asset key.
	ErrAssetNotFound = errors.New("dsclient: item has no such asset")
)

// APIError represents a catalog error payload or HTTP failure.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Raw    []byte `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Title != "" && e.Detail != "":
		return fmt.Sprintf("dsclient: %s (%s)", e.Title, e.Detail)
	case e.Title != "":
		return fmt.Sprintf("dsclient: %s", e.Title)
	case e.Detail != "":
		return fmt.Sprintf("dsclient: %s", e.Detail)
	default:
		return fmt.Sprintf("dsclient: api error status=%d", e.Status)
	}
}

// Temporary reports whether the error may be retried.
func (e *APIError) Temporary() bool {
	if e == nil {
		return false
	}
	return transient(e.Status)
}

// RequestError wraps a failure with the operation and URL it happened on, so
// callers can retry the specific call rather than restarting from scratch.
type RequestError struct {
	Op  string
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("dsclient: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// PageError reports a failure while fetching one page of a paginated search.
// Items yielded before the failure remain valid; callers decide whether the
// partial listing is still useful.
type PageError struct {
	// Page is the 1-based ordinal of the page that failed.
	Page int
	// Token is the opaque cursor the failed fetch used ("" for the first page).
	Token string
	Err   error
}

func (e *PageError) Error() string {
	if e.Page <= 1 {
		return fmt.Sprintf("dsclient: initial search page failed: %v", e.Err)
	}
	return fmt.Sprintf("dsclient: search page %d failed: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Initial reports whether the very first page failed, i.e. no results were
// produced at all.
func (e *PageError) Initial() bool { return e.Page <= 1 }
