package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePreview(); err != nil {
		return err
	}
	if c.Inspect.StatsConcurrency < 1 {
		return errors.New("inspect.stats_concurrency must be at least 1")
	}
	switch c.Export.Compression {
	case "none", "deflate":
	default:
		return fmt.Errorf("export.compression: unsupported value %q (want none or deflate)", c.Export.Compression)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want auto, console, or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validatePreview() error {
	if c.Preview.MaxDimension < 0 {
		return errors.New("preview.max_dimension must be >= 0")
	}
	switch c.Preview.OnDecline {
	case OnDeclineRaw, OnDeclineBlock:
	default:
		return fmt.Errorf("preview.on_decline: unsupported value %q (want raw or block)", c.Preview.OnDecline)
	}
	return nil
}
