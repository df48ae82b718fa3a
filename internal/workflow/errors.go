package workflow

import (
	"context"
	"errors"
	"fmt"

	"captioner/internal/services"
)

// Kind classifies a workflow failure.
type Kind string

const (
	KindMissingParameters   Kind = "MissingParameters"
	KindInvalidStyle        Kind = "InvalidStyle"
	KindInvalidCaptions     Kind = "InvalidCaptions"
	KindVideoNotFound       Kind = "VideoNotFound"
	KindBundleFailed        Kind = "BundleFailed"
	KindCompositionNotFound Kind = "CompositionNotFound"
	KindRenderFailed        Kind = "RenderFailed"
	KindCanceled            Kind = "Canceled"
	KindToolMissing         Kind = "ToolMissing"
	KindNotConfigured       Kind = "NotConfigured"
	KindExtractionFailed    Kind = "ExtractionFailed"
	KindTranscriptionFailed Kind = "TranscriptionFailed"
)

// Class groups kinds by who can fix them.
func (k Kind) Class() services.FailureClass {
	switch k {
	case KindMissingParameters, KindInvalidStyle, KindInvalidCaptions, KindVideoNotFound:
		return services.ClassInput
	case KindToolMissing, KindNotConfigured:
		return services.ClassConfiguration
	default:
		return services.ClassStage
	}
}

// Error is the terminal outcome of a failed job.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Details returns the underlying cause for API responses.
func (e *Error) Details() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error()
}

// KindOf extracts the Kind from err, or "" when err is not a workflow error.
func KindOf(err error) Kind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return ""
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// stageError reclassifies failures caused by cancellation.
func stageError(ctx context.Context, kind Kind, message string, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return newError(KindCanceled, "job canceled", ctxErr)
	}
	return newError(kind, message, err)
}
