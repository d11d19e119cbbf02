package stac

import (
	"encoding/json"
	"strings"
)

// Asset represents a STAC Asset with support for additional fields.
type Asset struct {
	Type        string   `json:"type,omitempty"`
	Href        string   `json:"href"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Created     string   `json:"created,omitempty"`
	Roles       []string `json:"roles,omitempty"`

	// AdditionalFields holds foreign members from extensions (e.g., "file:size").
	AdditionalFields map[string]any `json:"-"`
}

var knownAssetFields = map[string]bool{
	"type": true, "href": true, "title": true, "description": true,
	"created": true, "roles": true,
}

// UnmarshalJSON implements custom unmarshaling to capture foreign members.
func (asset *Asset) UnmarshalJSON(data []byte) error {
	type assetAlias Asset
	var aux assetAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*asset = Asset(aux)

	foreign, err := captureForeignMembers(data, knownAssetFields)
	if err != nil {
		return err
	}
	asset.AdditionalFields = foreign
	return nil
}

// MarshalJSON implements custom marshaling to include foreign members.
func (asset Asset) MarshalJSON() ([]byte, error) {
	type assetAlias Asset
	data, err := json.Marshal(assetAlias(asset))
	if err != nil {
		return nil, err
	}
	return mergeForeignMembers(data, asset.AdditionalFields)
}

// SizeBytes returns the declared asset size from the file extension
// ("file:size"), or 0 when the catalog does not declare one.
func (asset *Asset) SizeBytes() int64 {
	if asset == nil {
		return 0
	}
	switch v := asset.AdditionalFields["file:size"].(type) {
	case float64:
		if v > 0 {
			return int64(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// Checksum describes a declared digest for an asset.
type Checksum struct {
	Algorithm string // "sha256" or "md5"
	Digest    string // lowercase hex
}

// Multihash prefixes for the digests the Data Space declares: varint code plus
// length byte, hex encoded.
const (
	multihashSHA256 = "1220"   // code 0x12, length 0x20
	multihashMD5    = "d50110" // code 0xd5 (varint d501), length 0x10
)

// Checksum returns the declared digest from the file extension
// ("file:checksum"). It recognizes multihash-encoded sha2-256 and md5 values as
// well as plain "algorithm:hex" strings. The second return is false when no
// usable checksum is declared; such assets download unverified.
func (asset *Asset) Checksum() (Checksum, bool) {
	if asset == nil {
		return Checksum{}, false
	}
	raw, ok := asset.AdditionalFields["file:checksum"].(string)
	if !ok || raw == "" {
		return Checksum{}, false
	}
	raw = strings.ToLower(raw)

	if algorithm, digest, found := strings.Cut(raw, ":"); found {
		if digest == "" {
			return Checksum{}, false
		}
		return Checksum{Algorithm: algorithm, Digest: digest}, true
	}

	switch {
	case strings.HasPrefix(raw, multihashSHA256) && len(raw) == len(multihashSHA256)+64:
		return Checksum{Algorithm: "sha256", Digest: raw[len(multihashSHA256):]}, true
	case strings.HasPrefix(raw, multihashMD5) && len(raw) == len(multihashMD5)+32:
		return Checksum{Algorithm: "md5", Digest: raw[len(multihashMD5):]}, true
	}
	return Checksum{}, false
}
