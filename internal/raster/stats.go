package raster

import (
	"context"
	"math"
	"sync"
)

// BandInfo summarises one band. NaN and the NoData value are excluded from
// every statistic.
type BandInfo struct {
	Band   int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	// Valid counts pixels that contributed to the statistics.
	Valid int
	Total int
	// Integral reports whether every valid value is a whole number.
	Integral bool
	// RoundTrips32 reports whether every valid value survives float32.
	RoundTrips32 bool
}

// HasData reports whether the band holds at least one valid pixel.
func (b BandInfo) HasData() bool { return b.Valid > 0 }

// ComputeBandInfo derives statistics for values.
func ComputeBandInfo(band int, values []float64, nodata float64, hasNoData bool) BandInfo {
	info := BandInfo{
		Band:         band,
		Min:          math.NaN(),
		Max:          math.NaN(),
		Mean:         math.NaN(),
		StdDev:       math.NaN(),
		Total:        len(values),
		Integral:     true,
		RoundTrips32: true,
	}
	var sum, sumSq float64
	for _, v := range values {
		if math.IsNaN(v) || (hasNoData && v == nodata) {
			continue
		}
		if info.Valid == 0 || v < info.Min {
			info.Min = v
		}
		if info.Valid == 0 || v > info.Max {
			info.Max = v
		}
		info.Valid++
		sum += v
		sumSq += v * v
		if info.Integral && v != math.Trunc(v) {
			info.Integral = false
		}
		if info.RoundTrips32 && float64(float32(v)) != v {
			info.RoundTrips32 = false
		}
	}
	if info.Valid > 0 {
		n := float64(info.Valid)
		info.Mean = sum / n
		variance := sumSq/n - info.Mean*info.Mean
		if variance < 0 {
			variance = 0
		}
		info.StdDev = math.Sqrt(variance)
	}
	return info
}

// bandCache memoises BandInfo per band.
type bandCache struct {
	mu    sync.Mutex
	infos map[int]BandInfo
}

func (c *bandCache) get(ctx context.Context, band int, compute func(context.Context) (BandInfo, error)) (BandInfo, error) {
	c.mu.Lock()
	if info, ok := c.infos[band]; ok {
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	info, err := compute(ctx)
	if err != nil {
		return BandInfo{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.infos == nil {
		c.infos = make(map[int]BandInfo)
	}
	c.infos[band] = info
	return info, nil
}

// statsFor reads band through h and computes its statistics.
func statsFor(ctx context.Context, h Handle, band int) (BandInfo, error) {
	values, err := h.ReadBand(ctx, band)
	if err != nil {
		return BandInfo{}, err
	}
	nodata, has := h.NoData()
	return ComputeBandInfo(band, values, nodata, has), nil
}

// StatsFor computes statistics for band of any handle without caching.
func StatsFor(ctx context.Context, h Handle, band int) (BandInfo, error) {
	return statsFor(ctx, h, band)
}
