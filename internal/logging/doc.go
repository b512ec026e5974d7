// Package logging assembles structured slog loggers used across Pixora.
//
// It owns the console/JSON handlers, output routing, and context helpers that
// tag log lines with request IDs and pipeline stages. NewNop serves tests and
// wiring code that cannot fail.
package logging
