// Package geotiff reads and writes the subset of GeoTIFF that rasterkit
// needs: classic TIFF containers holding one or more bands of a single sample
// type, stored in strips or tiles, uncompressed or Deflate-compressed, plus the
// GeoTIFF and GDAL tags that carry georeferencing and NoData.
//
// Reading is band-at-a-time so callers never hold more than one band in
// memory. Writing is deterministic: identical inputs always produce identical
// bytes, which the exporter relies on for reproducible output. Georeferencing
// tags are carried as opaque Fields so malformed values survive a round trip
// instead of being silently repaired.
package geotiff
