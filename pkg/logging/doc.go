// Package logging configures the process-wide slog logger: tint for
// readable console output, JSON in production, and an optional
// lumberjack-rotated JSON file.
package logging
