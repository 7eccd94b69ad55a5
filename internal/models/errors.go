package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error kinds surfaced to API clients.
const (
	CodeNotFound              = "NOT_FOUND"
	CodeValidation            = "VALIDATION_ERROR"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeStorageConflict       = "STORAGE_CONFLICT"
	CodeClassifierUnavailable = "CLASSIFIER_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Reasons []string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewValidationFailedError(reasons []string) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: "Post failed validation",
		Reasons: append([]string(nil), reasons...),
	}
}

func NewInvalidTransitionError(action string, from PostStatus) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s a post in status %q", action, from),
	}
}

func NewStorageConflictError(err error) *AppError {
	return &AppError{
		Code:    CodeStorageConflict,
		Message: "Post was modified concurrently; re-fetch and retry",
		Err:     err,
	}
}

func NewClassifierUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeClassifierUnavailable,
		Message: "Content classifier unavailable; try again shortly",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the kind of err, or CodeInternal when it is not an AppError.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch ErrorCode(err) {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeValidationFailed:
		return fiber.StatusUnprocessableEntity
	case CodeInvalidTransition, CodeStorageConflict:
		return fiber.StatusConflict
	case CodeClassifierUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Reasons: appErr.Reasons,
		}
		// Internal causes stay in the logs.
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
			Code:  CodeInternal,
		}
	}

	return c.Status(status).JSON(response)
}
