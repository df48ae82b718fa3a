// Package transcription turns an extracted audio file into a caption timeline.
//
// Two backends implement Transcriber: Google Cloud Speech-to-Text (audio is
// staged in Cloud Storage and recognized with a long-running operation) and a
// local WhisperX run. Both validate their configuration before any network or
// process call so missing credentials surface as configuration errors rather
// than stage failures. Results are normalized and checked against the caption
// timeline invariants before they are returned.
package transcription
