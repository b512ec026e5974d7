// Package api defines the wire-format types shared by the daemon's HTTP
// handlers and the CLI client.
//
// # Key Types
//
// ProcessRequest/ProcessResponse: one pipeline run. The image travels as a
// data URL; the response names the tracked artifact path.
//
// DaemonStatus: running state, pool size, temp directory usage, inference
// session state and model presence.
//
// ErrorResponse: the message plus a short error kind ("decode", "untracked",
// ...) so clients can react without parsing text.
//
// # Client
//
// Client wraps the loopback HTTP API for the CLI. IsUnavailable distinguishes
// "daemon not running" from request failures.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for the desktop UI. Domain results that are
// already plain data (pipeline.Result, imaging.Info, journal.Run) are sent as
// is rather than copied into parallel structs.
package api
