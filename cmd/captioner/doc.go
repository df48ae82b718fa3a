// Package main hosts the captioner CLI entrypoint and command graph.
//
// Commands either run pipeline work in-process (transcribe, render) using the
// same wiring as the daemon, or talk to a running daemon over its HTTP API
// (progress, watch). Configuration resolution and logger setup live in the
// command context so subcommands stay declarative.
package main
