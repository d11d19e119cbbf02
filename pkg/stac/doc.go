// Package stac provides types for working with SpatioTemporal Asset Catalog (STAC) data.
//
// This package implements STAC Item, Collection, Link, and Asset types with support
// for "foreign members" - additional JSON fields not defined in the STAC specification.
// Foreign members are preserved during JSON unmarshaling in the AdditionalFields map.
//
// Catalogs such as the Copernicus Data Space publish download integrity metadata
// (declared size, checksum) as foreign members of each asset following the STAC
// file extension. Asset.SizeBytes and Asset.Checksum expose those fields so
// downloads can be resumed and verified.
package stac
