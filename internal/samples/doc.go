// Package samples records persisted corrected samples in a SQLite registry.
//
// Every "Yes" correction writes a derived raster next to (or away from) its
// source; the registry remembers which source it came from, the checksums of
// both files at the time, and which issue kinds were fixed, so later runs can
// list and locate derived samples without scanning the filesystem.
package samples
