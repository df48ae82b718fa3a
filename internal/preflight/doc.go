// Package preflight provides readiness checks for the tools, credentials,
// and filesystem paths that captioner depends on.
//
// These checks run in two contexts:
//   - The API "check-setup" endpoint and the CLI "captioner check-setup"
//     command call CheckSetup to report whether captions can be generated.
//   - The daemon calls RunAll on startup and logs every failed check so an
//     operator sees broken directories or stores before the first job.
//
// Checks never fail the caller; each returns a Result or report entry.
package preflight
