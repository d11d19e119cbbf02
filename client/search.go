package dsclient

import (
	"context"
	"iter"
	"net/http"

	"github.com/robert-malhotra/go-dataspace-client/pkg/stac"
)

// SearchService executes catalog search requests.
type SearchService struct {
	client *Client
}

// SearchStats reports what a Query consumed. Populated once the returned
// sequence stops, whether by exhaustion, truncation, error, or the caller
// ceasing to pull.
type SearchStats struct {
	// Pages counts pages fetched successfully.
	Pages int
	// Items counts distinct items yielded.
	Items int
	// Duplicates counts items suppressed because their id was already seen
	// in this search.
	Duplicates int
	// Truncated is set when the page cap stopped the search while the
	// catalog still advertised a next page. The yielded items remain valid.
	Truncated bool
}

// SearchOption configures a Query call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	stats          *SearchStats
	maxPages       *int
	requestOptions []RequestOption
}

// WithStats records pagination counters into the provided struct.
func WithStats(stats *SearchStats) SearchOption {
	return func(o *searchOptions) { o.stats = stats }
}

// WithPageCap overrides the client-level page cap for one search. Zero
// disables the cap.
func WithPageCap(n int) SearchOption {
	return func(o *searchOptions) {
		if n >= 0 {
			o.maxPages = &n
		}
	}
}

// WithSearchRequestOption appends a RequestOption applied to each page fetch.
func WithSearchRequestOption(opt RequestOption) SearchOption {
	return func(o *searchOptions) {
		if opt != nil {
			o.requestOptions = append(o.requestOptions, opt)
		}
	}
}

// Query streams search results lazily using the catalog's pagination tokens.
// One page is fetched per page consumed; stopping consumption stops fetching.
// Items are de-duplicated by id within the search, since catalogs may return
// overlapping boundary items across pages. Fetch failures surface as a
// *PageError carrying the page ordinal and cursor, after which the sequence
// ends; items already yielded stay with the consumer.
func (s *SearchService) Query(ctx context.Context, params SearchParams, opts ...SearchOption) iter.Seq2[*stac.Item, error] {
	var cfg searchOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	stats := cfg.stats
	if stats == nil {
		stats = &SearchStats{}
	}
	maxPages := s.client.maxPages
	if cfg.maxPages != nil {
		maxPages = *cfg.maxPages
	}

	base := params.Clone()
	return func(yield func(*stac.Item, error) bool) {
		seen := make(map[string]struct{})
		token := base.NextToken
		page := 0
		for {
			page++
			current := base.Clone()
			current.NextToken = token

			result, err := s.GetPage(ctx, current, cfg.requestOptions...)
			if err != nil {
				yield(nil, &PageError{Page: page, Token: token, Err: err})
				return
			}
			stats.Pages++

			for _, item := range result.Items {
				if item == nil {
					continue
				}
				if _, dup := seen[item.Id]; dup {
					stats.Duplicates++
					continue
				}
				seen[item.Id] = struct{}{}
				stats.Items++
				if !yield(item, nil) {
					return
				}
			}

			next := result.NextToken()
			if next == "" {
				return
			}
			if maxPages > 0 && page >= maxPages {
				stats.Truncated = true
				return
			}
			token = next
		}
	}
}

// GetPage performs a single POST /search request returning one page of items.
func (s *SearchService) GetPage(ctx context.Context, params SearchParams, opts ...RequestOption) (*ItemCollection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	body, err := params.body()
	if err != nil {
		return nil, err
	}
	var page ItemCollection
	if err := s.client.doJSON(ctx, http.MethodPost, "/search", nil, body, &page, opts); err != nil {
		return nil, err
	}
	return &page, nil
}
