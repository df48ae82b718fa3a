// Package audio extracts a transcription-ready audio track from an uploaded
// video with ffmpeg.
//
// The ffmpeg invocation is assembled with ffmpeg-go and executed under the
// caller's context so cancellation kills the process. A missing ffmpeg binary
// is a configuration error; a failing run or unreadable source is reported as
// ErrExtractionFailed. Callers own the produced file and must remove it.
package audio
