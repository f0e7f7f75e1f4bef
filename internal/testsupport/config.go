package testsupport

import (
	"path/filepath"
	"testing"

	"rasterkit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.Format = "json"
	cfgVal.Inspect.StatsConcurrency = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithSamplesDir routes persisted samples into a "samples" directory under
// the test's temp root.
func WithSamplesDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.SamplesDir = filepath.Join(b.baseDir, "samples")
	}
}

// WithOnDecline sets the declined-correction preview policy.
func WithOnDecline(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Preview.OnDecline = policy
	}
}

// WithMaxDimension caps the preview size.
func WithMaxDimension(px int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Preview.MaxDimension = px
	}
}

// WithCompression sets the compression of written rasters.
func WithCompression(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.Compression = name
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
