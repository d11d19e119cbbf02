package stac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemForeignMembers(t *testing.T) {
	t.Run("unmarshal preserves foreign members", func(t *testing.T) {
		jsonData := `{
			"type": "Feature",
			"stac_version": "1.0.0",
			"id": "S2B_MSIL2A_20240101",
			"geometry": {"type": "Point", "coordinates": [0, 0]},
			"properties": {"datetime": "2024-01-01T10:30:00Z"},
			"links": [],
			"assets": {},
			"custom_field": "custom_value",
			"another_field": 42
		}`

		var item Item
		err := json.Unmarshal([]byte(jsonData), &item)
		require.NoError(t, err)

		assert.Equal(t, "S2B_MSIL2A_20240101", item.Id)
		assert.Equal(t, "1.0.0", item.Version)
		assert.Equal(t, "custom_value", item.AdditionalFields["custom_field"])
		assert.Equal(t, float64(42), item.AdditionalFields["another_field"])
		assert.Equal(t, "2024-01-01T10:30:00Z", item.Datetime().Format("2006-01-02T15:04:05Z"))
	})

	t.Run("marshal includes foreign members", func(t *testing.T) {
		item := Item{
			Type:       "Feature",
			Version:    "1.0.0",
			Id:         "test-item",
			Properties: map[string]any{},
			Links:      []*Link{},
			Assets:     map[string]*Asset{},
			AdditionalFields: map[string]any{
				"custom_field": "custom_value",
			},
		}

		data, err := json.Marshal(item)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "custom_value", decoded["custom_field"])
	})
}

func TestAssetIntegrityFields(t *testing.T) {
	t.Run("size and multihash sha256 checksum", func(t *testing.T) {
		jsonData := `{
			"href": "https://download.example.com/products/a.zip",
			"file:size": 1048576,
			"file:checksum": "1220` + "deadbeef" + `00000000000000000000000000000000000000000000000000000000"
		}`

		var asset Asset
		require.NoError(t, json.Unmarshal([]byte(jsonData), &asset))

		assert.Equal(t, int64(1048576), asset.SizeBytes())
		sum, ok := asset.Checksum()
		require.True(t, ok)
		assert.Equal(t, "sha256", sum.Algorithm)
		assert.Len(t, sum.Digest, 64)
	})

	t.Run("algorithm prefixed checksum", func(t *testing.T) {
		asset := Asset{AdditionalFields: map[string]any{
			"file:checksum": "md5:9e107d9d372bb6826bd81d3542a419d6",
		}}
		sum, ok := asset.Checksum()
		require.True(t, ok)
		assert.Equal(t, "md5", sum.Algorithm)
		assert.Equal(t, "9e107d9d372bb6826bd81d3542a419d6", sum.Digest)
	})

	t.Run("absent metadata", func(t *testing.T) {
		var asset Asset
		assert.Zero(t, asset.SizeBytes())
		_, ok := asset.Checksum()
		assert.False(t, ok)
	})

	t.Run("unrecognized multihash downloads unverified", func(t *testing.T) {
		asset := Asset{AdditionalFields: map[string]any{"file:checksum": "abcdef"}}
		_, ok := asset.Checksum()
		assert.False(t, ok)
	})
}

func TestItemAssetLookup(t *testing.T) {
	item := Item{
		Assets: map[string]*Asset{
			"PRODUCT":   {Href: "https://catalogue.example.com/download/1"},
			"QUICKLOOK": {Href: "https://catalogue.example.com/ql/1"},
		},
		Links: []*Link{
			{Rel: "self", Href: "https://catalogue.example.com/items/1"},
		},
	}

	require.NotNil(t, item.Asset("PRODUCT"))
	assert.Nil(t, item.Asset("THUMBNAIL"))
	require.NotNil(t, item.FindLink("self"))
	assert.Nil(t, item.FindLink("next"))
}
