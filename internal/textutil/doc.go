// Package textutil holds small string helpers for building file names from
// raster identifiers.
package textutil
