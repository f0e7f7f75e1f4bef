package preflight

import (
	"context"

	"rasterkit/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	// Samples land next to their source when no directory is configured.
	if cfg.Paths.SamplesDir != "" {
		results = append(results, CheckDirectoryAccess("Samples directory", cfg.Paths.SamplesDir))
	}

	results = append(results,
		CheckSampleRegistry(ctx, cfg.SamplesDBPath()),
		CheckCompression(cfg.Export.Compression),
	)
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
