// Package render holds the collaborators the render orchestrator drives:
// a media Probe, a Bundler that prepares a per-job workspace, a
// CompositionResolver that lays captions out for a named composition, and a
// Renderer that burns the result into a video.
//
// The concrete implementations shell out to ffprobe and ffmpeg. The ffmpeg
// renderer reads `-progress pipe:1` output and reports completion as a
// fraction in [0, 1]; mapping that onto the externally visible percentage is
// the orchestrator's job.
package render
