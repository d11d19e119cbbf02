package stac

// Extent describes the area and acquisition period a collection covers, e.g.
// a mission's footprint and operational lifetime.
type Extent struct {
	Spatial  *SpatialExtent  `json:"spatial,omitempty"`
	Temporal *TemporalExtent `json:"temporal,omitempty"`
}

// SpatialExtent lists one or more covered bounding boxes.
type SpatialExtent struct {
	Bbox [][]float64 `json:"bbox"`
}

// TemporalExtent lists covered time intervals; a null interval end marks a
// mission still acquiring.
type TemporalExtent struct {
	Interval [][]any `json:"interval"`
}
