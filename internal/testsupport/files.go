package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rasterkit/internal/dtype"
	"rasterkit/internal/fileutil"
	"rasterkit/internal/geotiff"
)

// Raster describes a GeoTIFF fixture. Bands[i] holds band i+1 in row-major
// order.
type Raster struct {
	Width    int
	Height   int
	DataType dtype.DataType
	// Storage overrides the physical sample type for rasters that declare a
	// narrower type than they store.
	Storage dtype.DataType
	Geo     geotiff.Geo
	Bands   [][]float64
}

// UTMGeo returns georeferencing for a north-up 30 m grid in EPSG:32633
// anchored at (500000, 4200000). An empty nodata leaves NoData undefined.
func UTMGeo(nodata string) geotiff.Geo {
	return geotiff.Geo{
		PixelScale:   geotiff.Numbers(30, 30, 0),
		Tiepoints:    geotiff.Numbers(0, 0, 0, 500000, 4200000, 0),
		KeyDirectory: []uint16{1, 1, 0, 2, 1024, 0, 1, 1, 3072, 0, 1, 32633},
		NoData:       nodata,
	}
}

// WriteRaster writes r to path, creating parent directories, and returns
// path.
func WriteRaster(t testing.TB, path string, r Raster) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	header := geotiff.Header{
		Width:    r.Width,
		Height:   r.Height,
		Bands:    len(r.Bands),
		DataType: r.DataType,
		Storage:  r.Storage,
	}
	if err := geotiff.WriteFile(path, header, r.Geo, r.Bands); err != nil {
		t.Fatalf("write raster %s: %v", path, err)
	}
	return path
}

// Ramp returns n values start, start+step, ...
func Ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Fill returns n copies of v.
func Fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Checksum returns the SHA-256 of the file at path.
func Checksum(t testing.TB, path string) string {
	t.Helper()

	sum, _, err := fileutil.Checksum(path)
	if err != nil {
		t.Fatalf("checksum %s: %v", path, err)
	}
	return sum
}

// DirEntries lists the names in dir.
func DirEntries(t testing.TB, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// OutputEntries is DirEntries without the ".lock" files pathguard leaves
// beside written destinations.
func OutputEntries(t testing.TB, dir string) []string {
	t.Helper()

	var names []string
	for _, name := range DirEntries(t, dir) {
		if !strings.HasSuffix(name, ".lock") {
			names = append(names, name)
		}
	}
	return names
}
