// Package config loads, normalizes, and validates rasterkit configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours RASTERKIT_* environment overrides. The Config type
// centralizes the directories, logging, preview, and inspection knobs the CLI
// and workspace need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
