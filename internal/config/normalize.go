package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables that override file values.
const (
	EnvStateDir     = "RASTERKIT_STATE_DIR"
	EnvSamplesDir   = "RASTERKIT_SAMPLES_DIR"
	EnvLogDir       = "RASTERKIT_LOG_DIR"
	EnvLogLevel     = "RASTERKIT_LOG_LEVEL"
	EnvLogFormat    = "RASTERKIT_LOG_FORMAT"
	EnvOnDecline    = "RASTERKIT_PREVIEW_ON_DECLINE"
	EnvMaxDimension = "RASTERKIT_PREVIEW_MAX_DIMENSION"
)

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizePreview()
	c.Export.Compression = strings.ToLower(strings.TrimSpace(c.Export.Compression))
	if c.Export.Compression == "" {
		c.Export.Compression = defaultCompression
	}
	if c.Inspect.StatsConcurrency == 0 {
		c.Inspect.StatsConcurrency = defaultStatsConcurrency
	}
	return nil
}

func (c *Config) applyEnv() error {
	for name, dst := range map[string]*string{
		EnvStateDir:   &c.Paths.StateDir,
		EnvSamplesDir: &c.Paths.SamplesDir,
		EnvLogDir:     &c.Paths.LogDir,
		EnvLogLevel:   &c.Logging.Level,
		EnvLogFormat:  &c.Logging.Format,
		EnvOnDecline:  &c.Preview.OnDecline,
	} {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv(EnvMaxDimension); ok && strings.TrimSpace(value) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxDimension, err)
		}
		c.Preview.MaxDimension = n
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.SamplesDir = strings.TrimSpace(c.Paths.SamplesDir)
	if c.Paths.SamplesDir, err = expandPath(c.Paths.SamplesDir); err != nil {
		return fmt.Errorf("paths.samples_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizePreview() {
	c.Preview.OnDecline = strings.ToLower(strings.TrimSpace(c.Preview.OnDecline))
	if c.Preview.OnDecline == "" {
		c.Preview.OnDecline = defaultOnDecline
	}
}
