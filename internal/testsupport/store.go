package testsupport

import (
	"testing"

	"rasterkit/internal/config"
	"rasterkit/internal/samples"
)

// MustOpenSamples opens the sample registry of cfg for tests and registers
// cleanup.
func MustOpenSamples(t testing.TB, cfg *config.Config) *samples.Store {
	t.Helper()

	store, err := samples.Open(cfg.SamplesDBPath())
	if err != nil {
		t.Fatalf("samples.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
