// Package query builds catalog search requests. Filter covers the common
// imagery criteria (area, time window, cloud cover) and encodes them into
// search parameters; the fluent Builder and Property helpers cover arbitrary
// CQL2 expressions for everything Filter does not model.
package query

import (
	"errors"
	"fmt"
	"time"

	dsclient "github.com/robert-malhotra/go-dataspace-client/client"
)

var (
	// ErrInvalidBoundingBox indicates a bounding box whose coordinates are
	// malformed or out of order.
	ErrInvalidBoundingBox = errors.New("query: invalid bounding box")
	// ErrInvalidTimeRange indicates a time window that ends before it starts.
	ErrInvalidTimeRange = errors.New("query: invalid time range")
)

// DefaultPageSize is the page limit applied when a Filter does not set one.
const DefaultPageSize = 20

// Filter describes an imagery search declaratively. The zero value matches
// everything in the catalog, one default-sized page at a time.
type Filter struct {
	// Collection restricts results to one catalog collection, e.g.
	// "SENTINEL-2".
	Collection string
	// IDs restricts results to specific item ids.
	IDs []string
	// BBox is the area of interest as [minLon, minLat, maxLon, maxLat].
	BBox []float64
	// From and To bound the acquisition time. A zero value leaves that end
	// of the window open.
	From time.Time
	To   time.Time
	// CloudCoverMax keeps only items with eo:cloud_cover at or below the
	// given percentage. Nil disables the criterion; zero means cloud-free.
	CloudCoverMax *float64
	// SortBy orders results; the catalog's default order applies when empty.
	SortBy []dsclient.SortField
	// Limit is the page size, DefaultPageSize when zero.
	Limit int
	// Extra passes additional search body members through verbatim.
	Extra map[string]any
}

// CloudCover is a convenience for populating Filter.CloudCoverMax inline.
func CloudCover(max float64) *float64 { return &max }

// Validate checks the filter's criteria without touching the network.
func (f Filter) Validate() error {
	switch len(f.BBox) {
	case 0:
	case 4:
		if f.BBox[0] > f.BBox[2] {
			return fmt.Errorf("%w: min longitude %v exceeds max %v", ErrInvalidBoundingBox, f.BBox[0], f.BBox[2])
		}
		if f.BBox[1] > f.BBox[3] {
			return fmt.Errorf("%w: min latitude %v exceeds max %v", ErrInvalidBoundingBox, f.BBox[1], f.BBox[3])
		}
		if f.BBox[1] < -90 || f.BBox[3] > 90 {
			return fmt.Errorf("%w: latitude outside [-90, 90]", ErrInvalidBoundingBox)
		}
	default:
		return fmt.Errorf("%w: expected 4 coordinates, got %d", ErrInvalidBoundingBox, len(f.BBox))
	}

	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidTimeRange,
			f.To.Format(time.RFC3339), f.From.Format(time.RFC3339))
	}

	if f.CloudCoverMax != nil && (*f.CloudCoverMax < 0 || *f.CloudCoverMax > 100) {
		return fmt.Errorf("query: cloud cover %v outside [0, 100]", *f.CloudCoverMax)
	}
	return nil
}

// Encode validates the filter and produces the search parameters it
// describes. Encoding is deterministic: the same filter always produces the
// same parameters, so encoded searches can be compared or cached.
func (f Filter) Encode() (dsclient.SearchParams, error) {
	if err := f.Validate(); err != nil {
		return dsclient.SearchParams{}, err
	}

	params := dsclient.SearchParams{
		Datetime: encodeInterval(f.From, f.To),
		Limit:    f.Limit,
	}
	if params.Limit <= 0 {
		params.Limit = DefaultPageSize
	}
	if f.Collection != "" {
		params.Collections = []string{f.Collection}
	}
	if len(f.IDs) > 0 {
		params.IDs = append([]string{}, f.IDs...)
	}
	if len(f.BBox) > 0 {
		params.BBox = append([]float64{}, f.BBox...)
	}
	if len(f.SortBy) > 0 {
		params.SortBy = append([]dsclient.SortField{}, f.SortBy...)
	}
	if f.CloudCoverMax != nil {
		params.Filter = Property("eo:cloud_cover").Lte(*f.CloudCoverMax)
	}
	if len(f.Extra) > 0 {
		params.Additional = make(map[string]any, len(f.Extra))
		for k, v := range f.Extra {
			params.Additional[k] = v
		}
	}
	return params, nil
}

// encodeInterval renders a STAC datetime interval, using ".." for open ends.
func encodeInterval(from, to time.Time) string {
	if from.IsZero() && to.IsZero() {
		return ""
	}
	start, end := "..", ".."
	if !from.IsZero() {
		start = from.UTC().Format(time.RFC3339)
	}
	if !to.IsZero() {
		end = to.UTC().Format(time.RFC3339)
	}
	return start + "/" + end
}
