package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"rasterkit/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "rasterkit")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.SamplesDir != "" {
		t.Fatalf("expected samples next to source by default, got %q", cfg.Paths.SamplesDir)
	}
	if cfg.Preview.OnDecline != config.OnDeclineRaw {
		t.Fatalf("unexpected on_decline default: %q", cfg.Preview.OnDecline)
	}
	if cfg.Preview.MaxDimension != config.Default().Preview.MaxDimension {
		t.Fatalf("unexpected max dimension: %d", cfg.Preview.MaxDimension)
	}
	if cfg.SamplesDBPath() != filepath.Join(wantState, "samples.db") {
		t.Fatalf("unexpected samples db path: %q", cfg.SamplesDBPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "rasterkit.toml")

	type payload struct {
		Paths struct {
			SamplesDir string `toml:"samples_dir"`
		} `toml:"paths"`
		Preview struct {
			OnDecline    string `toml:"on_decline"`
			MaxDimension int    `toml:"max_dimension"`
		} `toml:"preview"`
	}
	custom := payload{}
	custom.Paths.SamplesDir = filepath.Join(tempDir, "samples")
	custom.Preview.OnDecline = "BLOCK"
	custom.Preview.MaxDimension = 256

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Preview.OnDecline != config.OnDeclineBlock {
		t.Fatalf("expected normalized on_decline, got %q", cfg.Preview.OnDecline)
	}
	if cfg.Preview.MaxDimension != 256 {
		t.Fatalf("unexpected max dimension: %d", cfg.Preview.MaxDimension)
	}
	if cfg.Paths.SamplesDir != filepath.Join(tempDir, "samples") {
		t.Fatalf("unexpected samples dir: %q", cfg.Paths.SamplesDir)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "rasterkit.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvStateDir, filepath.Join(tempDir, "state"))
	t.Setenv(config.EnvMaxDimension, "64")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env level override, got %q", cfg.Logging.Level)
	}
	if cfg.Paths.StateDir != filepath.Join(tempDir, "state") {
		t.Fatalf("expected env state dir, got %q", cfg.Paths.StateDir)
	}
	if cfg.Preview.MaxDimension != 64 {
		t.Fatalf("expected env max dimension, got %d", cfg.Preview.MaxDimension)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"retention", func(c *config.Config) { c.Logging.RetentionDays = -1 }, "retention_days"},
		{"on decline", func(c *config.Config) { c.Preview.OnDecline = "ask" }, "preview.on_decline"},
		{"max dimension", func(c *config.Config) { c.Preview.MaxDimension = -5 }, "preview.max_dimension"},
		{"concurrency", func(c *config.Config) { c.Inspect.StatsConcurrency = 0 }, "stats_concurrency"},
		{"compression", func(c *config.Config) { c.Export.Compression = "lzw" }, "export.compression"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "rasterkit.toml")
	if err := os.WriteFile(configPath, []byte("[preview]\nmax_dim = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to fail")
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists || cfg.Export.Compression != "none" {
		t.Fatalf("unexpected sample config: exists=%v %+v", exists, cfg.Export)
	}
}
