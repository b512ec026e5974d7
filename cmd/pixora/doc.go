// Command pixora is the command-line front end of the Pixora image backend.
//
// "pixora serve" runs the daemon in the foreground; start, stop and restart
// manage it in the background. "pixora process" converts a single image
// without a daemon, while status, artifacts and history talk to a running
// daemon over its loopback HTTP API. Configuration is loaded once per
// invocation and shared by every subcommand.
package main
