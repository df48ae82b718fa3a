// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size)
//
// Inspect executes ffprobe and returns the parsed Result. Helper methods on
// Result resolve duration (container first, then the longest stream), frame
// rate, and the primary video stream.
package ffprobe
