// Package logging provides structured logging for Canopy Core.
//
// It wraps the standard library log/slog with configuration-driven
// setup (level, format, output) and service-wide default fields.
//
// Domain packages do not import this package directly; they declare a
// minimal Logger interface and accept anything that satisfies it,
// including *logging.Logger.
package logging
