package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the structured error body returned by the audit API.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError creates a new APIError with the given parameters.
func NewAPIError(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// APIErrorWithDetails creates a new APIError with additional details.
func APIErrorWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined API errors for common scenarios.
var (
	ErrNotFound   = NewAPIError(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrRunActive  = NewAPIError(http.StatusConflict, "RUN_ACTIVE", "A pipeline run is already in progress")
	ErrNoSnapshot = NewAPIError(http.StatusNotFound, "NO_SNAPSHOT", "No snapshot has been produced yet")
)

// InvalidRequestWithError creates an invalid request error with details.
func InvalidRequestWithError(err error) *APIError {
	return APIErrorWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// RunFailedError wraps a pipeline failure for the API surface.
func RunFailedError(err error) *APIError {
	return APIErrorWithDetails(http.StatusInternalServerError, "RUN_FAILED", "Pipeline run failed", err.Error())
}
