package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers classify failures from external tools and services.
var (
	// ErrExternalTool: ffmpeg, ffprobe, uvx, or a cloud API returned an error.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation: the caller supplied unusable input.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration: a binary, credential, or setting is missing.
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	// ErrTransient is used when no marker is given.
	ErrTransient = errors.New("transient failure")
)

// Wrap tags err with marker and prefixes it with "stage: operation: message".
// Both marker and err stay reachable through errors.Is.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := buildDetail(stage, operation, message)
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// FailureClass groups errors by who can fix them.
type FailureClass string

const (
	// ClassInput errors are caused by the request and reported as 4xx.
	ClassInput FailureClass = "input"
	// ClassConfiguration errors need an operator to install a tool or set credentials.
	ClassConfiguration FailureClass = "configuration"
	// ClassStage errors come from an external stage failing mid-run.
	ClassStage FailureClass = "stage"
)

// Classify maps a wrapped error to its failure class.
func Classify(err error) FailureClass {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return ClassInput
	case errors.Is(err, ErrConfiguration):
		return ClassConfiguration
	default:
		return ClassStage
	}
}

func buildDetail(parts ...string) string {
	kept := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return "service failure"
	}
	return strings.Join(kept, ": ")
}
