// Package logging assembles the structured slog loggers used by rasterkit.
//
// Records go to stderr as console text or JSON and are mirrored as JSON into
// a daily file in the configured log directory. Old daily files are pruned
// by retention. Warnings and errors carry event_type and error_hint fields
// so they can be filtered.
package logging
