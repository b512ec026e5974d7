// Package preflight provides readiness checks for the filesystem paths and
// runtime pieces pixora depends on.
//
// The daemon runs the offline checks once at startup and logs failures; the
// CLI "pixora doctor" command runs every check, including the reachability
// of the model source, and prints the results.
//
// Optional checks cover pieces that only background removal needs. Their
// failure degrades the feature rather than the daemon.
package preflight
