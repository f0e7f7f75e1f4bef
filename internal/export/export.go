// Package export writes a reordered subset of a raster's bands to a new
// GeoTIFF, carrying its georeferencing, NoData and data type unchanged.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"rasterkit/internal/bandorder"
	"rasterkit/internal/dtype"
	"rasterkit/internal/fileutil"
	"rasterkit/internal/geotiff"
	"rasterkit/internal/logging"
	"rasterkit/internal/pathguard"
	"rasterkit/internal/raster"
)

// Request is one export. Only persistent rasters are accepted, so a
// preview-only correction can never be exported.
type Request struct {
	Source      raster.Persistent
	Order       bandorder.Order
	Destination string
}

// Result describes a completed export.
type Result struct {
	Path     string
	Source   string
	Order    bandorder.Order
	DataType dtype.DataType
	Size     int64
	SHA256   string
	Elapsed  time.Duration
}

// Exporter writes band subsets.
type Exporter struct {
	Compression geotiff.Compression
	Logger      *slog.Logger
}

// storageTyper is implemented by handles whose physical sample type can
// differ from the declared one.
type storageTyper interface {
	StorageType() dtype.DataType
}

// Export validates req and writes the selected bands, in order, to
// req.Destination. The destination appears only when every band was
// written; on failure or cancellation nothing is left behind.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Source == nil {
		return nil, &Error{Stage: "validate", Err: errors.New("nil raster handle")}
	}
	src := req.Source
	if err := req.Order.ValidateSubset(src.BandCount()); err != nil {
		return nil, err
	}
	dest, err := checkDestination(src.Path(), req.Destination)
	if err != nil {
		return nil, &Error{Stage: "validate", Err: err}
	}

	logger := logging.NewComponentLogger(e.Logger, "export").With(
		logging.String(logging.FieldRaster, src.ID()),
		logging.String(logging.FieldBands, req.Order.String()),
		logging.String("destination", dest),
	)
	lease, err := pathguard.Acquire(dest)
	if err != nil {
		return nil, &Error{Stage: "guard", Err: err}
	}
	defer func() { _ = lease.Release() }()

	header := geotiff.Header{
		Width:       src.Width(),
		Height:      src.Height(),
		Bands:       len(req.Order),
		DataType:    src.DataType(),
		Compression: e.Compression,
	}
	if st, ok := src.(storageTyper); ok {
		header.Storage = st.StorageType()
	}

	start := time.Now()
	err = fileutil.WriteAtomic(dest, func(tmp string) error {
		return writeBands(ctx, tmp, header, src, req.Order)
	})
	if err != nil {
		var exportErr *Error
		if !errors.As(err, &exportErr) {
			err = &Error{Stage: "finalize", Err: err}
		}
		logging.ErrorWithContext(logger, "export failed", "export_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "no partial output was kept; fix the cause and rerun the export"),
		)
		return nil, err
	}

	sum, size, err := fileutil.Checksum(dest)
	if err != nil {
		return nil, &Error{Stage: "finalize", Err: err}
	}
	result := &Result{
		Path:     dest,
		Source:   src.Path(),
		Order:    req.Order.Clone(),
		DataType: header.DataType,
		Size:     size,
		SHA256:   sum,
		Elapsed:  time.Since(start),
	}
	logger.Info("export complete",
		logging.Int64("size", size),
		logging.String("sha256", sum),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func writeBands(ctx context.Context, path string, header geotiff.Header, src raster.Handle, order bandorder.Order) error {
	w, err := geotiff.Create(path, header, src.Geo())
	if err != nil {
		return &Error{Stage: "write", Err: err}
	}
	for i, band := range order {
		if err := ctx.Err(); err != nil {
			_ = w.Abort()
			return &Error{Stage: "read", Band: band, Err: err}
		}
		data, err := src.ReadBand(ctx, band)
		if err != nil {
			_ = w.Abort()
			return &Error{Stage: "read", Band: band, Err: err}
		}
		if err := w.WriteBand(i+1, data); err != nil {
			_ = w.Abort()
			return &Error{Stage: "write", Band: band, Err: err}
		}
	}
	if err := w.Close(); err != nil {
		return &Error{Stage: "finalize", Err: err}
	}
	return nil
}

// checkDestination resolves dest and verifies it is not the source and that
// its directory exists and is writable.
func checkDestination(source, dest string) (string, error) {
	if strings.TrimSpace(dest) == "" {
		return "", ErrNoDestination
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dest, err)
	}
	if abs == filepath.Clean(source) {
		return "", fmt.Errorf("%w: %s", ErrSameAsSource, abs)
	}
	if info, err := os.Stat(abs); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", abs)
		}
		if srcInfo, err := os.Stat(source); err == nil && os.SameFile(info, srcInfo) {
			return "", fmt.Errorf("%w: %s", ErrSameAsSource, abs)
		}
	}

	dir := filepath.Dir(abs)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDestinationDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDestinationDir, dir)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDestinationDir, dir, err)
	}
	return abs, nil
}
