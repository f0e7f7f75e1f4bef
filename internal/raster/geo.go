package raster

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"rasterkit/internal/geotiff"
)

var (
	// ErrNoTransform reports a raster without georeferencing tags.
	ErrNoTransform = errors.New("geotransform undefined")
	// ErrTransformNotIterable reports georeferencing tags whose payload is
	// not a sequence of numbers.
	ErrTransformNotIterable = errors.New("geotransform not iterable")
	// ErrTransformInvalid reports numeric georeferencing tags that do not
	// form a usable affine transform.
	ErrTransformInvalid = errors.New("geotransform invalid")
)

// GeoTransform is the six-term affine transform in GDAL order: origin X,
// pixel width, row rotation, origin Y, column rotation, pixel height.
type GeoTransform [6]float64

// Apply maps a pixel/line position to georeferenced coordinates.
func (g GeoTransform) Apply(col, row float64) (float64, float64) {
	x := g[0] + col*g[1] + row*g[2]
	y := g[3] + col*g[4] + row*g[5]
	return x, y
}

// Bounds returns the extent covered by a width x height grid.
func (g GeoTransform) Bounds(width, height int) orb.Bound {
	w, h := float64(width), float64(height)
	corners := [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}
	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range corners {
		x, y := g.Apply(c[0], c[1])
		bound = bound.Extend(orb.Point{x, y})
	}
	return bound
}

// TransformFromGeo derives the affine transform from GeoTIFF tags. A
// ModelTransformation matrix wins over tiepoint plus pixel scale.
func TransformFromGeo(geo geotiff.Geo) (GeoTransform, error) {
	var gt GeoTransform
	switch {
	case geo.Transformation.Set:
		f := geo.Transformation
		if !f.Numeric {
			return gt, fmt.Errorf("%w: model transformation holds %q", ErrTransformNotIterable, f.Text)
		}
		if len(f.Numbers) != 16 {
			return gt, fmt.Errorf("%w: model transformation has %d values, want 16", ErrTransformInvalid, len(f.Numbers))
		}
		m := f.Numbers
		gt = GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}
	case geo.Tiepoints.Set || geo.PixelScale.Set:
		tie, scale := geo.Tiepoints, geo.PixelScale
		if (tie.Set && !tie.Numeric) || (scale.Set && !scale.Numeric) {
			return gt, fmt.Errorf("%w: tiepoint or pixel scale is not numeric", ErrTransformNotIterable)
		}
		if !tie.Set || !scale.Set {
			return gt, fmt.Errorf("%w: tiepoint and pixel scale must both be present", ErrTransformInvalid)
		}
		if len(tie.Numbers) != 6 {
			return gt, fmt.Errorf("%w: tiepoint has %d values, want 6", ErrTransformInvalid, len(tie.Numbers))
		}
		if len(scale.Numbers) < 2 {
			return gt, fmt.Errorf("%w: pixel scale has %d values, want 3", ErrTransformInvalid, len(scale.Numbers))
		}
		sx, sy := scale.Numbers[0], scale.Numbers[1]
		t := tie.Numbers
		gt = GeoTransform{t[3] - t[0]*sx, sx, 0, t[4] + t[1]*sy, 0, -sy}
	default:
		return gt, ErrNoTransform
	}

	for i, v := range gt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return gt, fmt.Errorf("%w: term %d is not finite", ErrTransformInvalid, i)
		}
	}
	if gt[1] == 0 || gt[5] == 0 {
		return gt, fmt.Errorf("%w: zero pixel size", ErrTransformInvalid)
	}
	return gt, nil
}

const (
	keyModelType          = 1024
	keyCitation           = 1026
	keyGeographicType     = 2048
	keyGeographicCitation = 2049
	keyProjectedType      = 3072
	keyProjectedCitation  = 3073
	userDefined           = 32767
)

type geoKey struct {
	location uint16
	count    uint16
	value    uint16
}

// CRSFromGeo names the coordinate reference system described by the GeoKey
// directory: "EPSG:<code>" for registered systems, the citation text for
// user-defined ones, or "" when undefined.
func CRSFromGeo(geo geotiff.Geo) string {
	keys := parseKeys(geo.KeyDirectory)
	if len(keys) == 0 {
		return ""
	}
	for _, id := range []uint16{keyProjectedType, keyGeographicType} {
		if k, ok := keys[id]; ok && k.location == 0 && k.value != 0 && k.value != userDefined {
			return "EPSG:" + strconv.Itoa(int(k.value))
		}
	}
	for _, id := range []uint16{keyProjectedCitation, keyCitation, keyGeographicCitation} {
		if text := keyText(geo, keys[id]); text != "" {
			return text
		}
	}
	for _, id := range []uint16{keyProjectedType, keyGeographicType, keyModelType} {
		if k, ok := keys[id]; ok && k.value == userDefined {
			return "user-defined"
		}
	}
	return ""
}

func parseKeys(dir []uint16) map[uint16]geoKey {
	if len(dir) < 4 {
		return nil
	}
	n := int(dir[3])
	keys := make(map[uint16]geoKey, n)
	for i := 0; i < n; i++ {
		at := 4 + i*4
		if at+4 > len(dir) {
			break
		}
		keys[dir[at]] = geoKey{location: dir[at+1], count: dir[at+2], value: dir[at+3]}
	}
	return keys
}

func keyText(geo geotiff.Geo, k geoKey) string {
	if k.location != 34737 || k.count == 0 {
		return ""
	}
	start, end := int(k.value), int(k.value)+int(k.count)
	if start >= len(geo.ASCIIParams) {
		return ""
	}
	if end > len(geo.ASCIIParams) {
		end = len(geo.ASCIIParams)
	}
	return strings.TrimSpace(strings.Trim(geo.ASCIIParams[start:end], "|\x00"))
}
