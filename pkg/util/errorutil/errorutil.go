package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the HTTP and realtime surfaces.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeMismatch         = "MISMATCH"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeAlreadyQueued    = "ALREADY_QUEUED"
	CodeQueueEmpty       = "QUEUE_EMPTY"
	CodeNoStaffAvailable = "NO_STAFF_AVAILABLE"
	CodeTransferFailed   = "TRANSFER_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewMismatch reports a stale view of ownership, e.g. transferring from the wrong staff member.
func NewMismatch(message string, details map[string]any) error {
	return NewDomainError(CodeMismatch, message, http.StatusConflict, details)
}

func NewCapacityExceeded(staffID string) error {
	return NewDomainError(CodeCapacityExceeded, "staff member at capacity", http.StatusConflict,
		map[string]any{"staff_id": staffID})
}

func NewAlreadyQueued(sessionID string) error {
	return NewDomainError(CodeAlreadyQueued, "session already queued", http.StatusConflict,
		map[string]any{"session_id": sessionID})
}

func NewQueueEmpty() error {
	return NewDomainError(CodeQueueEmpty, "queue is empty", http.StatusNotFound, nil)
}

func NewNoStaffAvailable() error {
	return NewDomainError(CodeNoStaffAvailable, "no staff available", http.StatusServiceUnavailable, nil)
}

// NewTransferFailed wraps a failed compensating rollback. Load counts may be unbalanced.
func NewTransferFailed(err error, details map[string]any) error {
	return &DomainError{
		Code:       CodeTransferFailed,
		Message:    "transfer failed, please retry",
		HTTPStatus: http.StatusInternalServerError,
		Details:    details,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
