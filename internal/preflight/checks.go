package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"rasterkit/internal/geotiff"
	"rasterkit/internal/samples"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSampleRegistry opens the registry database and counts its samples.
func CheckSampleRegistry(ctx context.Context, dbPath string) Result {
	const name = "Sample registry"

	store, err := samples.Open(dbPath)
	if err != nil {
		if errors.Is(err, samples.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema mismatch; move the file aside to rebuild it)", dbPath)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dbPath, err)}
	}
	defer store.Close()

	list, err := store.List(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: query: %v)", dbPath, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d samples)", dbPath, len(list))}
}

// CheckCompression verifies the configured output compression.
func CheckCompression(value string) Result {
	const name = "Export compression"

	c, err := geotiff.ParseCompression(value)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: c.String()}
}
