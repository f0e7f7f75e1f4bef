// Package issues scans rasters for data-quality problems and recommends the
// corrective action for each. Scanning is deterministic and read-only.
package issues

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"rasterkit/internal/dtype"
	"rasterkit/internal/raster"
)

// Kind identifies a class of problem.
type Kind string

const (
	MissingNoData     Kind = "MissingNoData"
	InconsistentDType Kind = "InconsistentDType"
)

// Action is the correction recommended for an issue.
type Action string

const (
	SetNoData Action = "SetNoData"
	CastDType Action = "CastDType"
)

// FloatSentinel is the conventional NoData value for float rasters.
const FloatSentinel = -9999

// Issue is one detected problem.
type Issue struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Action      Action `json:"action"`
	// Bands lists the affected 1-based bands.
	Bands []int `json:"bands"`
	// Target is the data type the corrected raster should use.
	Target dtype.DataType `json:"-"`
	// NoData is the sentinel recommended by SetNoData.
	NoData float64 `json:"-"`
}

// Kinds returns the kinds of list in order.
func Kinds(list []Issue) []string {
	out := make([]string, len(list))
	for i, issue := range list {
		out[i] = string(issue.Kind)
	}
	return out
}

// observed summarises valid values across bands.
type observed struct {
	lo, hi       float64
	hasData      bool
	integral     bool
	roundTrips32 bool
}

// Scan inspects h and returns its issues, dtype problems first. The
// sentinel of a MissingNoData issue is computed against the type the raster
// will have after any recommended cast.
func Scan(ctx context.Context, h raster.Handle) ([]Issue, error) {
	declared := h.DataType()
	obs := observed{integral: true, roundTrips32: true}
	var offending []int

	for band := 1; band <= h.BandCount(); band++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := h.BandInfo(ctx, band)
		if err != nil {
			return nil, fmt.Errorf("scan band %d: %w", band, err)
		}
		if !info.HasData() {
			continue
		}
		if !fits(declared, info) {
			offending = append(offending, band)
		}
		if !obs.hasData || info.Min < obs.lo {
			obs.lo = info.Min
		}
		if !obs.hasData || info.Max > obs.hi {
			obs.hi = info.Max
		}
		obs.hasData = true
		obs.integral = obs.integral && info.Integral
		obs.roundTrips32 = obs.roundTrips32 && info.RoundTrips32
	}

	var found []Issue
	target := declared
	if len(offending) > 0 {
		target = dtype.Promote(declared, obs.lo, obs.hi, obs.integral, obs.roundTrips32)
		found = append(found, Issue{
			Kind:   InconsistentDType,
			Action: CastDType,
			Bands:  offending,
			Target: target,
			Description: fmt.Sprintf("observed values %s..%s in band(s) %s do not fit %s; %s round-trips them",
				formatValue(obs.lo), formatValue(obs.hi), joinBands(offending), declared, target),
		})
	}

	nodata, defined := h.NoData()
	if !defined || !target.Represents(nodata) {
		sentinel, sentinelType := Sentinel(target, obs.lo, obs.hi, obs.hasData)
		reason := "NoData is undefined"
		if defined {
			reason = fmt.Sprintf("NoData %s cannot be represented as %s", raster.FormatNoData(nodata), target)
		}
		found = append(found, Issue{
			Kind:        MissingNoData,
			Action:      SetNoData,
			Bands:       allBands(h.BandCount()),
			Target:      sentinelType,
			NoData:      sentinel,
			Description: fmt.Sprintf("%s; set it to %s (%s)", reason, formatValue(sentinel), sentinelType),
		})
	}
	return found, nil
}

func fits(t dtype.DataType, info raster.BandInfo) bool {
	if !t.Represents(info.Min) || !t.Represents(info.Max) {
		return false
	}
	switch {
	case t == dtype.Float32:
		return info.RoundTrips32
	case t.IsFloat():
		return true
	default:
		return info.Integral
	}
}

// Sentinel picks a NoData value for type t that lies outside the observed
// range [lo, hi]. Integer types use their minimum when unused, then their
// maximum, and are widened when their whole range is in use; the returned
// type is the one the sentinel belongs to. Float types use FloatSentinel
// when it is outside the data and the lowest finite value otherwise.
func Sentinel(t dtype.DataType, lo, hi float64, hasData bool) (float64, dtype.DataType) {
	if t.IsFloat() {
		if !hasData || FloatSentinel < lo || FloatSentinel > hi {
			return FloatSentinel, t
		}
		low, _ := t.Range()
		return low, t
	}
	for {
		tmin, tmax := t.Range()
		switch {
		case !hasData || lo > tmin:
			return tmin, t
		case hi < tmax:
			return tmax, t
		}
		t = t.Wider()
		if t.IsFloat() {
			return Sentinel(t, lo, hi, hasData)
		}
	}
}

func allBands(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func joinBands(bands []int) string {
	parts := make([]string, len(bands))
	for i, b := range bands {
		parts[i] = strconv.Itoa(b)
	}
	return strings.Join(parts, ",")
}

func formatValue(v float64) string {
	if math.Abs(v) >= 1e15 {
		return strconv.FormatFloat(v, 'g', 6, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
