package preview_test

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"rasterkit/internal/bandorder"
	"rasterkit/internal/config"
	"rasterkit/internal/correction"
	"rasterkit/internal/dtype"
	"rasterkit/internal/logging"
	"rasterkit/internal/preview"
	"rasterkit/internal/raster"
	"rasterkit/internal/testsupport"
)

// countingHandle records every pixel access.
type countingHandle struct {
	raster.Handle
	reads int
}

func (c *countingHandle) ReadBand(ctx context.Context, band int) ([]float64, error) {
	c.reads++
	return c.Handle.ReadBand(ctx, band)
}

func (c *countingHandle) BandInfo(ctx context.Context, band int) (raster.BandInfo, error) {
	c.reads++
	return c.Handle.BandInfo(ctx, band)
}

// cleanRaster is a 4x2, 4-band UInt8 raster with NoData 0 and no issues.
func cleanRaster(t *testing.T) *countingHandle {
	t.Helper()
	h, err := raster.NewMemory(raster.MemorySpec{
		ID:       "clean",
		Width:    4,
		Height:   2,
		DataType: dtype.UInt8,
		Geo:      testsupport.UTMGeo("0"),
		Bands: [][]float64{
			testsupport.Ramp(8, 0, 10),
			testsupport.Fill(8, 5),
			testsupport.Ramp(8, 1, 1),
			testsupport.Ramp(8, 100, 1),
		},
	})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return &countingHandle{Handle: h}
}

// brokenRaster declares Int8 but holds values up to 200 and has no NoData.
func brokenRaster(t *testing.T) raster.Handle {
	t.Helper()
	h, err := raster.NewMemory(raster.MemorySpec{
		ID:       "broken",
		Width:    2,
		Height:   2,
		DataType: dtype.Int8,
		Bands:    [][]float64{{0, 50, 100, 200}},
	})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return h
}

func composer() *preview.Composer {
	return &preview.Composer{Logger: logging.NewNop(), OnDecline: config.OnDeclineRaw}
}

func TestComposeRejectsBadOrdersBeforeReading(t *testing.T) {
	tests := []struct {
		name  string
		order bandorder.Order
	}{
		{"empty", bandorder.Order{}},
		{"four bands", bandorder.Order{1, 2, 3, 4}},
		{"out of range", bandorder.Order{5}},
		{"duplicate", bandorder.Order{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := cleanRaster(t)
			_, err := composer().Compose(context.Background(), preview.Request{Handle: h, Order: tt.order})
			var verr *bandorder.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Compose error = %v, want ValidationError", err)
			}
			if h.reads != 0 {
				t.Fatalf("validation failure read %d bands", h.reads)
			}
		})
	}
}

func TestComposeSizes(t *testing.T) {
	tests := []struct {
		order bandorder.Order
		gray  bool
	}{
		{bandorder.Order{1}, true},
		{bandorder.Order{4, 1}, false},
		{bandorder.Order{1, 3, 4}, false},
		{bandorder.Order{3, 2, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			res, err := composer().Compose(context.Background(), preview.Request{Handle: cleanRaster(t), Order: tt.order})
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			if _, isGray := res.Image.(*image.Gray); isGray != tt.gray {
				t.Fatalf("image type %T", res.Image)
			}
			if b := res.Image.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
				t.Fatalf("bounds = %v", b)
			}
			if len(res.Stretch) != len(tt.order) {
				t.Fatalf("stretch = %+v", res.Stretch)
			}
		})
	}
}

func TestGrayStretchAndNoData(t *testing.T) {
	res, err := composer().Compose(context.Background(), preview.Request{Handle: cleanRaster(t), Order: bandorder.Order{1}})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	gray := res.Image.(*image.Gray)
	if gray.Pix[0] != 0 || gray.Pix[1] != 0 || gray.Pix[7] != 255 {
		t.Fatalf("unexpected gray pixels %v", gray.Pix)
	}
	if res.Stretch[0].Min != 10 || res.Stretch[0].Max != 70 {
		t.Fatalf("stretch ignored NoData: %+v", res.Stretch[0])
	}
}

func TestConstantBandMapsToZero(t *testing.T) {
	res, err := composer().Compose(context.Background(), preview.Request{Handle: cleanRaster(t), Order: bandorder.Order{2}})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for i, v := range res.Image.(*image.Gray).Pix {
		if v != 0 {
			t.Fatalf("pixel %d = %d, want 0", i, v)
		}
	}
}

func TestTwoBandMapping(t *testing.T) {
	res, err := composer().Compose(context.Background(), preview.Request{Handle: cleanRaster(t), Order: bandorder.Order{4, 1}})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	img := res.Image.(*image.NRGBA)
	if got := img.Pix[7*4 : 7*4+4]; got[0] != 255 || got[1] != 255 || got[2] != 0 || got[3] != 255 {
		t.Fatalf("last pixel = %v, want [255 255 0 255]", got)
	}
	if got := img.Pix[0:4]; got[3] != 0 {
		t.Fatalf("NoData pixel should be transparent: %v", got)
	}
}

func TestThreeBandOrder(t *testing.T) {
	res, err := composer().Compose(context.Background(), preview.Request{Handle: cleanRaster(t), Order: bandorder.Order{1, 3, 4}})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	img := res.Image.(*image.NRGBA)
	if got := img.Pix[4:8]; got[0] != 0 || got[1] != 36 || got[2] != 36 || got[3] != 255 {
		t.Fatalf("pixel 1 = %v, want [0 36 36 255]", got)
	}
}

func TestDecisionRequired(t *testing.T) {
	_, err := composer().Compose(context.Background(), preview.Request{Handle: brokenRaster(t), Order: bandorder.Order{1}})
	var need *preview.DecisionRequiredError
	if !errors.As(err, &need) {
		t.Fatalf("Compose error = %v, want DecisionRequiredError", err)
	}
	if len(need.Issues) != 2 {
		t.Fatalf("issues = %+v", need.Issues)
	}
}

func TestDecisionPaths(t *testing.T) {
	no, decline := correction.No(), correction.Decline()

	res, err := composer().Compose(context.Background(), preview.Request{Handle: brokenRaster(t), Order: bandorder.Order{1}, Decision: &no})
	if err != nil {
		t.Fatalf("Compose(no): %v", err)
	}
	if res.Correction == nil || !res.Correction.Corrected() || res.Correction.Persisted() {
		t.Fatalf("expected an ephemeral correction, got %+v", res.Correction)
	}
	if _, ok := res.Correction.Handle.(*correction.Ephemeral); !ok {
		t.Fatalf("corrected handle %T", res.Correction.Handle)
	}

	res, err = composer().Compose(context.Background(), preview.Request{Handle: brokenRaster(t), Order: bandorder.Order{1}, Decision: &decline})
	if err != nil {
		t.Fatalf("Compose(decline, raw): %v", err)
	}
	if res.Correction != nil {
		t.Fatal("declined preview must not correct")
	}

	blocking := composer()
	blocking.OnDecline = config.OnDeclineBlock
	_, err = blocking.Compose(context.Background(), preview.Request{Handle: brokenRaster(t), Order: bandorder.Order{1}, Decision: &decline})
	var perr *preview.Error
	if !errors.As(err, &perr) || !errors.Is(err, preview.ErrDeclined) || perr.ErrorKind() != "preview" {
		t.Fatalf("Compose(decline, block) error = %v", err)
	}
}

func TestDownscale(t *testing.T) {
	h, err := raster.NewMemory(raster.MemorySpec{
		Width:    40,
		Height:   20,
		DataType: dtype.Float32,
		Geo:      testsupport.UTMGeo("-9999"),
		Bands:    [][]float64{testsupport.Ramp(800, 0, 0.5)},
	})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	c := composer()
	c.MaxDimension = 10
	res, err := c.Compose(context.Background(), preview.Request{Handle: h, Order: bandorder.Order{1}})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if b := res.Image.Bounds(); b.Dx() != 10 || b.Dy() != 5 || !res.Downscaled {
		t.Fatalf("bounds = %v downscaled=%v", b, res.Downscaled)
	}
}

func TestComposeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := composer().Compose(ctx, preview.Request{Handle: cleanRaster(t), Order: bandorder.Order{1}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Compose error = %v, want context.Canceled", err)
	}
}

func TestWritePNG(t *testing.T) {
	res, err := composer().Compose(context.Background(), preview.Request{Handle: cleanRaster(t), Order: bandorder.Order{1, 3, 4}})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "preview.png")
	if err := preview.WritePNG(path, res.Image); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds() != res.Image.Bounds() {
		t.Fatalf("decoded bounds %v", decoded.Bounds())
	}
	if names := testsupport.DirEntries(t, dir); len(names) != 1 {
		t.Fatalf("temporary files left behind: %v", names)
	}
}
