package api

import (
	"errors"
	"net/http"

	"captioner/internal/services"
	"captioner/internal/workflow"
)

// StatusForKind maps a workflow error kind to its HTTP status.
func StatusForKind(kind workflow.Kind) int {
	switch kind {
	case workflow.KindMissingParameters, workflow.KindInvalidStyle, workflow.KindInvalidCaptions:
		return http.StatusBadRequest
	case workflow.KindVideoNotFound:
		return http.StatusNotFound
	case "":
		return http.StatusInternalServerError
	}
	if kind.Class() == services.ClassInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// FromError converts a job error into a status and response body.
func FromError(err error, fallback string) (int, ErrorResponse) {
	var wfErr *workflow.Error
	if errors.As(err, &wfErr) {
		body := ErrorResponse{Error: wfErr.Message, Kind: string(wfErr.Kind)}
		if wfErr.Err != nil {
			body.Details = wfErr.Details()
		}
		return StatusForKind(wfErr.Kind), body
	}
	body := ErrorResponse{Error: fallback}
	if err != nil {
		body.Details = err.Error()
	}
	return http.StatusInternalServerError, body
}
