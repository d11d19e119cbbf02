package stac

import (
	"encoding/json"
	"time"
)

// Item represents a STAC Item (GeoJSON Feature) with support for foreign members.
type Item struct {
	Type       string            `json:"type,omitempty"`
	Version    string            `json:"stac_version"`
	Extensions []string          `json:"stac_extensions,omitempty"`
	Id         string            `json:"id"`
	Geometry   any               `json:"geometry"`
	Bbox       []float64         `json:"bbox,omitempty"`
	Properties map[string]any    `json:"properties"`
	Links      []*Link           `json:"links"`
	Assets     map[string]*Asset `json:"assets"`
	Collection string            `json:"collection,omitempty"`

	// AdditionalFields holds foreign members not defined in the STAC spec.
	AdditionalFields map[string]any `json:"-"`
}

var knownItemFields = map[string]bool{
	"type": true, "stac_version": true, "stac_extensions": true,
	"id": true, "geometry": true, "bbox": true, "properties": true,
	"links": true, "assets": true, "collection": true,
}

// UnmarshalJSON implements custom unmarshaling to capture foreign members.
func (item *Item) UnmarshalJSON(data []byte) error {
	type itemAlias Item
	var aux itemAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*item = Item(aux)

	foreign, err := captureForeignMembers(data, knownItemFields)
	if err != nil {
		return err
	}
	item.AdditionalFields = foreign
	return nil
}

// MarshalJSON implements custom marshaling to include foreign members.
func (item Item) MarshalJSON() ([]byte, error) {
	type itemAlias Item
	data, err := json.Marshal(itemAlias(item))
	if err != nil {
		return nil, err
	}
	return mergeForeignMembers(data, item.AdditionalFields)
}

// Asset returns the named asset, or nil if the item does not carry it.
func (item *Item) Asset(key string) *Asset {
	if item == nil {
		return nil
	}
	return item.Assets[key]
}

// Datetime returns the item's acquisition time from the datetime property.
// The zero time is returned when the property is absent or malformed.
func (item *Item) Datetime() time.Time {
	if item == nil {
		return time.Time{}
	}
	raw, ok := item.Properties["datetime"].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FindLink returns the first link with the given rel, or nil.
func (item *Item) FindLink(rel string) *Link {
	if item == nil {
		return nil
	}
	for _, link := range item.Links {
		if link != nil && link.Rel == rel {
			return link
		}
	}
	return nil
}
