// Package raster exposes read-only handles over multi-band rasters.
//
// A Handle reports dimensions, band count, declared data type, CRS,
// geotransform and NoData, streams one band at a time, and computes per-band
// statistics lazily. File handles wrap a GeoTIFF on disk and satisfy
// Persistent; Memory handles hold bands in memory and never do. Handles never
// mutate their source: corrected variants are new handles built on top.
package raster
