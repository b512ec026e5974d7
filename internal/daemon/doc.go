// Package daemon owns the long-running Pixora process state.
//
// A Daemon wires configuration, the artifact registry, the inference engine,
// model provisioning, the pipeline orchestrator, the event hub and the run
// journal into a single lifecycle guarded by a flock-based single-instance
// lock. It serves the loopback HTTP API used by the UI and the CLI.
//
// Keep coordination here: image work belongs to pipeline and imaging, and the
// daemon focuses on startup, shutdown and request plumbing.
package daemon
