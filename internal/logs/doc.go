// Package logs reads the daemon's log file for the CLI.
//
// Last returns the final lines of a file together with the offset where they
// end; Follow polls from an offset and hands each new line to a callback,
// starting over when the file is truncated or the pixora.log pointer moves to
// a new run.
package logs
