// Package watch renders a terminal progress view for a render job.
//
// The model polls a Source on a fixed tick and exits once the job reports 100
// or the user presses q. Sources exist for the HTTP API and for a local
// progress tracker, so the view works with or without a running daemon.
package watch
