// Package captions defines the caption timeline model shared by transcription,
// rendering, and the HTTP API.
//
// A Timeline is an ordered list of Segments, each optionally carrying
// word-level timing. Timelines are produced by a transcription backend or
// decoded from caller input, normalized, and validated against an
// OverlapPolicy before any renderer sees them. Once validated a timeline is
// treated as immutable; accessors return copies.
package captions
