// Package preview composes 1 to 3 bands of a raster into a displayable
// image. One band renders as grayscale; two bands map to red and green with
// blue held at zero; three bands map to red, green and blue in the order
// given. Each band is min-max stretched on its own.
package preview

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"math"

	xdraw "golang.org/x/image/draw"

	"rasterkit/internal/bandorder"
	"rasterkit/internal/config"
	"rasterkit/internal/correction"
	"rasterkit/internal/issues"
	"rasterkit/internal/logging"
	"rasterkit/internal/raster"
)

// Request describes one preview.
type Request struct {
	Handle raster.Handle
	Order  bandorder.Order
	// Decision answers the correction prompt. Nil means the caller has not
	// asked yet.
	Decision *correction.Decision
}

// Stretch records the value range mapped onto 0..255 for a band.
type Stretch struct {
	Band int
	Min  float64
	Max  float64
}

// Result is a composed preview.
type Result struct {
	// Image is *image.Gray for one band and *image.NRGBA otherwise.
	Image  image.Image
	Order  bandorder.Order
	Issues []issues.Issue
	// Correction is set when a correction was applied. A persisted sample
	// handle in it is owned by the caller.
	Correction *correction.Result
	Stretch    []Stretch
	Downscaled bool
}

// Composer builds previews.
type Composer struct {
	Engine *correction.Engine
	// OnDecline is config.OnDeclineRaw (default) or config.OnDeclineBlock.
	OnDecline string
	// MaxDimension caps the longer edge; 0 disables downscaling.
	MaxDimension int
	Logger       *slog.Logger
}

// Compose validates the band order, runs issue detection and renders the
// preview. Validation failures return *bandorder.ValidationError before any
// pixel is read.
func (c *Composer) Compose(ctx context.Context, req Request) (*Result, error) {
	if req.Handle == nil {
		return nil, &Error{Stage: "validate", Err: errors.New("nil raster handle")}
	}
	if err := req.Order.ValidatePreview(req.Handle.BandCount()); err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger(c.Logger, "preview").With(
		logging.String(logging.FieldRaster, req.Handle.ID()),
		logging.String(logging.FieldBands, req.Order.String()),
	)

	found, err := issues.Scan(ctx, req.Handle)
	if err != nil {
		return nil, &Error{Stage: "detect", Err: err}
	}
	result := &Result{Order: req.Order.Clone(), Issues: found}
	source := req.Handle
	if len(found) > 0 {
		if req.Decision == nil {
			return nil, &DecisionRequiredError{Issues: found}
		}
		switch {
		case req.Decision.Apply:
			corrected, err := c.engine().Apply(ctx, req.Handle, found, *req.Decision)
			if err != nil {
				return nil, &Error{Stage: "correct", Err: err}
			}
			result.Correction = corrected
			source = corrected.Handle
		case c.OnDecline == config.OnDeclineBlock:
			return nil, &Error{Stage: "correct", Err: ErrDeclined}
		default:
			logging.WarnWithContext(logger, "composing preview from uncorrected data", "preview_uncorrected",
				logging.Any("issue_kinds", issues.Kinds(found)),
				logging.String(logging.FieldImpact, "preview may look wrong"),
				logging.String(logging.FieldErrorHint, "answer yes or no to the correction prompt to preview corrected data"),
			)
		}
	}

	img, stretch, err := render(ctx, source, req.Order)
	if err != nil {
		return nil, err
	}
	result.Stretch = stretch
	result.Image, result.Downscaled = downscale(img, c.MaxDimension)
	logger.Info("preview composed",
		logging.Int("width", result.Image.Bounds().Dx()),
		logging.Int("height", result.Image.Bounds().Dy()),
		logging.Bool("corrected", result.Correction != nil && result.Correction.Corrected()),
	)
	return result, nil
}

func (c *Composer) engine() *correction.Engine {
	if c.Engine != nil {
		return c.Engine
	}
	return &correction.Engine{Logger: c.Logger}
}

// render reads the selected bands one at a time and builds the composite.
func render(ctx context.Context, h raster.Handle, order bandorder.Order) (image.Image, []Stretch, error) {
	w, ht := h.Width(), h.Height()
	nodata, hasNoData := h.NoData()
	channels := make([][]uint8, len(order))
	missing := make([]bool, w*ht)
	stretch := make([]Stretch, len(order))

	for i, band := range order {
		if err := ctx.Err(); err != nil {
			return nil, nil, &Error{Stage: "read", Band: band, Err: err}
		}
		values, err := h.ReadBand(ctx, band)
		if err != nil {
			return nil, nil, &Error{Stage: "read", Band: band, Err: err}
		}
		info := raster.ComputeBandInfo(band, values, nodata, hasNoData)
		stretch[i] = Stretch{Band: band, Min: info.Min, Max: info.Max}
		channels[i] = stretchBand(values, info, nodata, hasNoData, missing)
	}

	rect := image.Rect(0, 0, w, ht)
	if len(order) == 1 {
		gray := image.NewGray(rect)
		copy(gray.Pix, channels[0])
		return gray, stretch, nil
	}
	rgba := image.NewNRGBA(rect)
	for p := 0; p < w*ht; p++ {
		px := rgba.Pix[p*4 : p*4+4]
		if missing[p] {
			continue
		}
		for ch := range channels {
			px[ch] = channels[ch][p]
		}
		px[3] = 0xff
	}
	return rgba, stretch, nil
}

// stretchBand maps valid values onto 0..255. Missing pixels become 0 and are
// flagged in missing. A constant band maps to 0.
func stretchBand(values []float64, info raster.BandInfo, nodata float64, hasNoData bool, missing []bool) []uint8 {
	out := make([]uint8, len(values))
	span := info.Max - info.Min
	for i, v := range values {
		if math.IsNaN(v) || (hasNoData && v == nodata) {
			missing[i] = true
			continue
		}
		if !(span > 0) || math.IsInf(span, 0) {
			continue
		}
		out[i] = uint8(math.Round((v - info.Min) / span * 255))
	}
	return out
}

// downscale shrinks img so its longer edge is at most maxDim.
func downscale(img image.Image, maxDim int) (image.Image, bool) {
	b := img.Bounds()
	longer := max(b.Dx(), b.Dy())
	if maxDim <= 0 || longer <= maxDim {
		return img, false
	}
	scale := float64(maxDim) / float64(longer)
	rect := image.Rect(0, 0,
		max(1, int(math.Round(float64(b.Dx())*scale))),
		max(1, int(math.Round(float64(b.Dy())*scale))),
	)
	var dst xdraw.Image
	if _, gray := img.(*image.Gray); gray {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewNRGBA(rect)
	}
	xdraw.ApproxBiLinear.Scale(dst, rect, img, b, xdraw.Src, nil)
	return dst, true
}
