// Package pipeline composes the imaging and inference stages into the
// process operation used by the API and the CLI.
//
// A request decodes the source blob, optionally shrinks it to fit the
// configured maximum dimensions, optionally removes the background, encodes
// the result and hands the bytes to the artifact registry, which allocates the
// output path and tracks it. All CPU-bound work runs inside a bounded worker
// pool; waiting for a slot honours the caller's context but a started request
// runs to completion or to its first error.
package pipeline
