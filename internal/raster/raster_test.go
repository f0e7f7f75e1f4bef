package raster

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"rasterkit/internal/dtype"
	"rasterkit/internal/geotiff"
)

func utmGeo() geotiff.Geo {
	return geotiff.Geo{
		PixelScale:   geotiff.Numbers(10, 10, 0),
		Tiepoints:    geotiff.Numbers(0, 0, 0, 500000, 4200000, 0),
		KeyDirectory: []uint16{1, 1, 0, 2, 1024, 0, 1, 1, 3072, 0, 1, 32633},
		NoData:       "0",
	}
}

func writeFixture(t *testing.T, bands [][]float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.tif")
	header := geotiff.Header{Width: 4, Height: 2, Bands: len(bands), DataType: dtype.UInt16}
	if err := geotiff.WriteFile(path, header, utmGeo(), bands); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenReadsMetadataAndBands(t *testing.T) {
	path := writeFixture(t, [][]float64{
		{0, 1, 2, 3, 4, 5, 6, 7},
		{10, 20, 30, 40, 50, 60, 70, 80},
	})
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.Width() != 4 || f.Height() != 2 || f.BandCount() != 2 || f.DataType() != dtype.UInt16 {
		t.Fatalf("unexpected shape %dx%d bands=%d type=%s", f.Width(), f.Height(), f.BandCount(), f.DataType())
	}
	if f.CRS() != "EPSG:32633" {
		t.Fatalf("crs = %q", f.CRS())
	}
	if nd, ok := f.NoData(); !ok || nd != 0 {
		t.Fatalf("nodata = %v, %v", nd, ok)
	}
	gt, err := f.GeoTransform()
	if err != nil {
		t.Fatalf("GeoTransform: %v", err)
	}
	want := GeoTransform{500000, 10, 0, 4200000, 0, -10}
	if gt != want {
		t.Fatalf("geotransform = %v, want %v", gt, want)
	}

	values, err := f.ReadBand(context.Background(), 2)
	if err != nil {
		t.Fatalf("ReadBand: %v", err)
	}
	if values[7] != 80 {
		t.Fatalf("band 2 last pixel = %v", values[7])
	}
	if _, err := f.ReadBand(context.Background(), 3); err == nil {
		t.Fatal("expected out-of-range band to fail")
	}
}

func TestOpenFailures(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		path string
		is   error
	}{
		{"missing", filepath.Join(dir, "absent.tif"), os.ErrNotExist},
		{"directory", dir, ErrNotRegular},
		{"not a raster", text, geotiff.ErrFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(tc.path)
			var openErr *OpenError
			if !errors.As(err, &openErr) {
				t.Fatalf("error = %v, want *OpenError", err)
			}
			if !errors.Is(err, tc.is) {
				t.Fatalf("error = %v, want %v", err, tc.is)
			}
			if openErr.ErrorKind() != "open" {
				t.Fatalf("kind = %q", openErr.ErrorKind())
			}
		})
	}
}

func TestBandInfoExcludesNoDataAndCaches(t *testing.T) {
	m, err := NewMemory(MemorySpec{
		Width:    3,
		Height:   2,
		DataType: dtype.Float32,
		Geo:      geotiff.Geo{NoData: "-1"},
		Bands:    [][]float64{{-1, 2, 4, math.NaN(), 6, -1}},
	})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	info, err := m.BandInfo(context.Background(), 1)
	if err != nil {
		t.Fatalf("BandInfo: %v", err)
	}
	if info.Valid != 3 || info.Total != 6 {
		t.Fatalf("valid=%d total=%d", info.Valid, info.Total)
	}
	if info.Min != 2 || info.Max != 6 || info.Mean != 4 {
		t.Fatalf("unexpected stats %+v", info)
	}
	if !info.Integral || !info.RoundTrips32 {
		t.Fatalf("expected integral float32-safe data: %+v", info)
	}
	again, _ := m.BandInfo(context.Background(), 1)
	if again != info {
		t.Fatalf("cached stats differ: %+v vs %+v", again, info)
	}
}

func TestComputeBandInfoAllInvalid(t *testing.T) {
	info := ComputeBandInfo(1, []float64{math.NaN(), math.NaN()}, 0, false)
	if info.HasData() || !math.IsNaN(info.Min) {
		t.Fatalf("expected empty stats, got %+v", info)
	}
}

func TestTransformFromGeo(t *testing.T) {
	matrix := geotiff.Numbers(2, 0, 0, 100, 0, -2, 0, 200, 0, 0, 1, 0, 0, 0, 0, 1)
	cases := []struct {
		name string
		geo  geotiff.Geo
		want GeoTransform
		err  error
	}{
		{"tiepoint and scale", utmGeo(), GeoTransform{500000, 10, 0, 4200000, 0, -10}, nil},
		{"matrix", geotiff.Geo{Transformation: matrix}, GeoTransform{100, 2, 0, 200, 0, -2}, nil},
		{"missing", geotiff.Geo{}, GeoTransform{}, ErrNoTransform},
		{"not iterable", geotiff.Geo{Transformation: geotiff.Text("garbage")}, GeoTransform{}, ErrTransformNotIterable},
		{"short matrix", geotiff.Geo{Transformation: geotiff.Numbers(1, 2, 3)}, GeoTransform{}, ErrTransformInvalid},
		{"scale only", geotiff.Geo{PixelScale: geotiff.Numbers(1, 1, 0)}, GeoTransform{}, ErrTransformInvalid},
		{"zero scale", geotiff.Geo{
			PixelScale: geotiff.Numbers(0, 0, 0),
			Tiepoints:  geotiff.Numbers(0, 0, 0, 1, 1, 0),
		}, GeoTransform{}, ErrTransformInvalid},
		{"nan term", geotiff.Geo{
			PixelScale: geotiff.Numbers(1, 1, 0),
			Tiepoints:  geotiff.Numbers(0, 0, 0, math.NaN(), 1, 0),
		}, GeoTransform{}, ErrTransformInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TransformFromGeo(tc.geo)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("error = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBounds(t *testing.T) {
	gt := GeoTransform{100, 2, 0, 200, 0, -2}
	b := gt.Bounds(10, 5)
	if b.Min[0] != 100 || b.Max[0] != 120 || b.Min[1] != 190 || b.Max[1] != 200 {
		t.Fatalf("unexpected bounds %v", b)
	}
}

func TestCRSFromGeo(t *testing.T) {
	cases := []struct {
		name string
		geo  geotiff.Geo
		want string
	}{
		{"none", geotiff.Geo{}, ""},
		{"projected", utmGeo(), "EPSG:32633"},
		{"geographic", geotiff.Geo{KeyDirectory: []uint16{1, 1, 0, 1, 2048, 0, 1, 4326}}, "EPSG:4326"},
		{"citation", geotiff.Geo{
			KeyDirectory: []uint16{1, 1, 0, 2, 1026, 34737, 12, 0, 3072, 0, 1, 32767},
			ASCIIParams:  "Local Grid|",
		}, "Local Grid"},
		{"user defined", geotiff.Geo{KeyDirectory: []uint16{1, 1, 0, 1, 3072, 0, 1, 32767}}, "user-defined"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CRSFromGeo(tc.geo); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNoDataParsing(t *testing.T) {
	if _, ok := ParseNoData(" "); ok {
		t.Fatal("blank nodata should be undefined")
	}
	if _, ok := ParseNoData("abc"); ok {
		t.Fatal("garbage nodata should be undefined")
	}
	if v, ok := ParseNoData("-9999"); !ok || v != -9999 {
		t.Fatalf("got %v, %v", v, ok)
	}
	if FormatNoData(math.NaN()) != "nan" || FormatNoData(-32768) != "-32768" {
		t.Fatal("unexpected formatting")
	}
	if v, ok := ParseNoData("nan"); !ok || !math.IsNaN(v) {
		t.Fatalf("nan should round trip, got %v %v", v, ok)
	}
}

func TestNewMemoryValidates(t *testing.T) {
	if _, err := NewMemory(MemorySpec{Width: 2, Height: 2, DataType: dtype.UInt8, Bands: [][]float64{{1}}}); err == nil {
		t.Fatal("expected short band to fail")
	}
	if _, err := NewMemory(MemorySpec{Width: 2, Height: 2, DataType: dtype.UInt8}); err == nil {
		t.Fatal("expected zero bands to fail")
	}
}
