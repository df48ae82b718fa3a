// Package workflow sequences the captioning pipeline.
//
// The Orchestrator renders a caption timeline onto a source video. It walks a
// fixed state machine (probe, bundle, select composition, render), reports
// progress through a tracker keyed by job id, and removes its scratch bundle
// on every exit path. Stages without their own progress signal report fixed
// checkpoints; renderer fractions are remapped onto the remaining range.
//
// CaptionJob is the upload-side flow: it checks preconditions, extracts a
// temporary audio track, transcribes it, and always deletes the audio.
//
// Every failure is returned as an *Error carrying a Kind so the HTTP layer
// can map it to a status code without parsing messages.
package workflow
