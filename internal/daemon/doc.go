// Package daemon coordinates the long-running captioner process.
//
// It wires configuration, the HTTP API handler, and the progress sweeper into
// a single lifecycle with flock-based locking to prevent multiple instances
// from sharing a state directory. Startup runs the preflight checks and logs
// every failure so broken setups surface before the first request.
//
// Keep orchestration logic here: job steps live in the workflow package while
// the daemon focuses on startup, shutdown, and status reporting.
package daemon
