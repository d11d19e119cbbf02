package stac

import "encoding/json"

// Collection represents a STAC Collection with support for foreign members.
type Collection struct {
	Type        string            `json:"type,omitempty"`
	Version     string            `json:"stac_version"`
	Extensions  []string          `json:"stac_extensions,omitempty"`
	Id          string            `json:"id"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description"`
	Keywords    []string          `json:"keywords,omitempty"`
	License     string            `json:"license"`
	Providers   []*Provider       `json:"providers,omitempty"`
	Extent      *Extent           `json:"extent"`
	Summaries   map[string]any    `json:"summaries,omitempty"`
	Links       []*Link           `json:"links"`
	Assets      map[string]*Asset `json:"assets,omitempty"`

	// AdditionalFields holds foreign members not defined in the STAC spec.
	AdditionalFields map[string]any `json:"-"`
}

var knownCollectionFields = map[string]bool{
	"type": true, "stac_version": true, "stac_extensions": true,
	"id": true, "title": true, "description": true, "keywords": true,
	"license": true, "providers": true, "extent": true, "summaries": true,
	"links": true, "assets": true,
}

// UnmarshalJSON implements custom unmarshaling to capture foreign members.
func (col *Collection) UnmarshalJSON(data []byte) error {
	type collectionAlias Collection
	var aux collectionAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*col = Collection(aux)

	foreign, err := captureForeignMembers(data, knownCollectionFields)
	if err != nil {
		return err
	}
	col.AdditionalFields = foreign
	return nil
}

// MarshalJSON implements custom marshaling to include foreign members.
func (col Collection) MarshalJSON() ([]byte, error) {
	type collectionAlias Collection
	data, err := json.Marshal(collectionAlias(col))
	if err != nil {
		return nil, err
	}
	return mergeForeignMembers(data, col.AdditionalFields)
}
