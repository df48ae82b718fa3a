// Package whisperx wraps the WhisperX CLI (run through uvx) for local
// transcription with word-level alignment.
//
// The Service builds the uvx argument list, runs it under the caller's
// context, and loads the JSON transcript WhisperX writes next to the audio.
// Tests swap process execution with WithCommandRunner.
package whisperx
