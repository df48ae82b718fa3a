// Package api serves the captioner HTTP surface with gin.
//
// # Routes
//
// POST /api/upload: multipart field "video"; saves the file under the upload
// directory, runs the caption job, and returns the caption timeline.
//
// POST /api/render: renders a video with burned-in captions; responds when the
// job reaches a terminal outcome.
//
// GET /api/render-progress: the progress of a job (?job=<id>) or of the most
// recent one. Always 200; unknown jobs read 0.
//
// GET /api/check-setup: the preflight readiness report.
//
// /uploads/* and /renders/* are served from their directories.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for browser clients. Failures are reported as
// {error, details} with a status derived from the workflow error kind: 4xx for
// request problems, 500 for configuration and stage failures.
package api
