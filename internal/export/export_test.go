package export_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"rasterkit/internal/bandorder"
	"rasterkit/internal/correction"
	"rasterkit/internal/dtype"
	"rasterkit/internal/export"
	"rasterkit/internal/issues"
	"rasterkit/internal/logging"
	"rasterkit/internal/pathguard"
	"rasterkit/internal/raster"
	"rasterkit/internal/testsupport"
)

func threeBand(t *testing.T, dir string) *raster.File {
	t.Helper()
	path := testsupport.WriteRaster(t, filepath.Join(dir, "scene.tif"), testsupport.Raster{
		Width:    5,
		Height:   4,
		DataType: dtype.Int16,
		Geo:      testsupport.UTMGeo("-32768"),
		Bands: [][]float64{
			testsupport.Ramp(20, 0, 1),
			testsupport.Ramp(20, 100, -3),
			testsupport.Ramp(20, -500, 7),
		},
	})
	h, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func exporter() *export.Exporter {
	return &export.Exporter{Logger: logging.NewNop()}
}

func readAll(t *testing.T, h raster.Handle) [][]float64 {
	t.Helper()
	out := make([][]float64, h.BandCount())
	for b := 1; b <= h.BandCount(); b++ {
		values, err := h.ReadBand(context.Background(), b)
		if err != nil {
			t.Fatalf("ReadBand(%d): %v", b, err)
		}
		out[b-1] = values
	}
	return out
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExportReordersBands(t *testing.T) {
	dir := t.TempDir()
	src := threeBand(t, dir)
	dest := filepath.Join(dir, "reordered.tif")

	res, err := exporter().Export(context.Background(), export.Request{Source: src, Order: bandorder.Order{3, 1, 2}, Destination: dest})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Path != dest || res.Size == 0 || len(res.SHA256) != 64 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.SHA256 != testsupport.Checksum(t, dest) {
		t.Fatal("result checksum does not match the file")
	}

	out, err := raster.Open(dest)
	if err != nil {
		t.Fatalf("Open export: %v", err)
	}
	defer out.Close()
	if out.BandCount() != 3 || out.DataType() != dtype.Int16 {
		t.Fatalf("unexpected export shape: %d bands, %s", out.BandCount(), out.DataType())
	}
	if out.CRS() != src.CRS() {
		t.Fatalf("crs = %q, want %q", out.CRS(), src.CRS())
	}
	srcGT, _ := src.GeoTransform()
	outGT, err := out.GeoTransform()
	if err != nil || outGT != srcGT {
		t.Fatalf("geotransform = %v (%v), want %v", outGT, err, srcGT)
	}
	if v, ok := out.NoData(); !ok || v != -32768 {
		t.Fatalf("nodata = %v, %v", v, ok)
	}

	want := readAll(t, src)
	got := readAll(t, out)
	for i, band := range []int{3, 1, 2} {
		if !equal(got[i], want[band-1]) {
			t.Fatalf("output band %d does not match source band %d", i+1, band)
		}
	}
}

func TestExportSubset(t *testing.T) {
	dir := t.TempDir()
	src := threeBand(t, dir)
	dest := filepath.Join(dir, "subset.tif")
	if _, err := exporter().Export(context.Background(), export.Request{Source: src, Order: bandorder.Order{2}, Destination: dest}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out, err := raster.Open(dest)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer out.Close()
	if out.BandCount() != 1 {
		t.Fatalf("band count = %d", out.BandCount())
	}
}

func TestExportValidation(t *testing.T) {
	tests := []struct {
		name  string
		order bandorder.Order
		dest  func(dir, source string) string
		check func(error) bool
	}{
		{
			name:  "empty order",
			order: bandorder.Order{},
			dest:  func(dir, _ string) string { return filepath.Join(dir, "out.tif") },
			check: isValidation,
		},
		{
			name:  "duplicate band",
			order: bandorder.Order{1, 1},
			dest:  func(dir, _ string) string { return filepath.Join(dir, "out.tif") },
			check: isValidation,
		},
		{
			name:  "band out of range",
			order: bandorder.Order{4},
			dest:  func(dir, _ string) string { return filepath.Join(dir, "out.tif") },
			check: isValidation,
		},
		{
			name:  "empty destination",
			order: bandorder.Order{1},
			dest:  func(string, string) string { return "  " },
			check: func(err error) bool { return errors.Is(err, export.ErrNoDestination) },
		},
		{
			name:  "destination is source",
			order: bandorder.Order{1},
			dest:  func(_, source string) string { return source },
			check: func(err error) bool { return errors.Is(err, export.ErrSameAsSource) },
		},
		{
			name:  "missing directory",
			order: bandorder.Order{1},
			dest:  func(dir, _ string) string { return filepath.Join(dir, "nope", "out.tif") },
			check: func(err error) bool { return errors.Is(err, export.ErrDestinationDir) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := threeBand(t, dir)
			before := testsupport.Checksum(t, src.Path())
			_, err := exporter().Export(context.Background(), export.Request{
				Source:      src,
				Order:       tt.order,
				Destination: tt.dest(dir, src.Path()),
			})
			if err == nil || !tt.check(err) {
				t.Fatalf("Export error = %v", err)
			}
			if names := testsupport.OutputEntries(t, dir); len(names) != 1 {
				t.Fatalf("validation failure left files: %v", names)
			}
			if testsupport.Checksum(t, src.Path()) != before {
				t.Fatal("source changed")
			}
		})
	}
}

func isValidation(err error) bool {
	var verr *bandorder.ValidationError
	return errors.As(err, &verr)
}

// failingFile fails reading one band.
type failingFile struct {
	*raster.File
	failBand int
}

func (f *failingFile) ReadBand(ctx context.Context, band int) ([]float64, error) {
	if band == f.failBand {
		return nil, fmt.Errorf("simulated read failure")
	}
	return f.File.ReadBand(ctx, band)
}

func TestExportFailureLeavesNoPartialOutput(t *testing.T) {
	dir := t.TempDir()
	src := threeBand(t, dir)
	dest := filepath.Join(dir, "broken.tif")

	_, err := exporter().Export(context.Background(), export.Request{
		Source:      &failingFile{File: src, failBand: 1},
		Order:       bandorder.Order{3, 1},
		Destination: dest,
	})
	var exportErr *export.Error
	if !errors.As(err, &exportErr) {
		t.Fatalf("Export error = %v, want *export.Error", err)
	}
	if exportErr.Stage != "read" || exportErr.Band != 1 || exportErr.ErrorKind() != "export" {
		t.Fatalf("unexpected error context %+v", exportErr)
	}
	if names := testsupport.OutputEntries(t, dir); len(names) != 1 {
		t.Fatalf("partial output left behind: %v", names)
	}
}

func TestExportCancelled(t *testing.T) {
	dir := t.TempDir()
	src := threeBand(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exporter().Export(ctx, export.Request{Source: src, Order: bandorder.Order{1, 2}, Destination: filepath.Join(dir, "out.tif")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Export error = %v, want context.Canceled", err)
	}
	if names := testsupport.OutputEntries(t, dir); len(names) != 1 {
		t.Fatalf("cancelled export left files: %v", names)
	}
}

func TestExportBusyDestination(t *testing.T) {
	dir := t.TempDir()
	src := threeBand(t, dir)
	dest := filepath.Join(dir, "busy.tif")
	lease, err := pathguard.Acquire(dest)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lease.Release()

	_, err = exporter().Export(context.Background(), export.Request{Source: src, Order: bandorder.Order{1}, Destination: dest})
	if !errors.Is(err, pathguard.ErrBusy) {
		t.Fatalf("Export error = %v, want ErrBusy", err)
	}
}

func TestDeclinedPersistenceExportsOriginalBytes(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteRaster(t, filepath.Join(dir, "signed.tif"), testsupport.Raster{
		Width:    3,
		Height:   2,
		DataType: dtype.Int8,
		Storage:  dtype.Int16,
		Geo:      testsupport.UTMGeo(""),
		Bands:    [][]float64{{0, 40, 80, 120, 160, 200}, testsupport.Fill(6, 9)},
	})
	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	first, err := exporter().Export(context.Background(), export.Request{Source: src, Order: bandorder.Order{1, 2}, Destination: filepath.Join(dir, "first.tif")})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	found, err := issues.Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	engine := &correction.Engine{Logger: logging.NewNop()}
	res, err := engine.Apply(context.Background(), src, found, correction.No())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Corrected() {
		t.Fatal("expected the preview correction to apply")
	}
	if _, ok := res.Handle.(raster.Persistent); ok {
		t.Fatal("ephemeral correction must not be exportable")
	}

	second, err := exporter().Export(context.Background(), export.Request{Source: src, Order: bandorder.Order{1, 2}, Destination: filepath.Join(dir, "second.tif")})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if first.SHA256 != second.SHA256 {
		t.Fatal("export after a preview-only correction differs from the original export")
	}

	out, err := raster.Open(second.Path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer out.Close()
	values, err := out.ReadBand(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadBand: %v", err)
	}
	if values[5] != 200 || out.DataType() != dtype.Int8 {
		t.Fatalf("stored values not carried: %v (%s)", values, out.DataType())
	}
}
