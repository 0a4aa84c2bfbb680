package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	// Transport errors
	ErrCodeTransport    ErrorCode = "TRANSPORT_ERROR"
	ErrCodeDisconnected ErrorCode = "DISCONNECTED"

	// Reconciliation errors
	ErrCodeReconcileTimeout ErrorCode = "RECONCILE_TIMEOUT"

	// Call errors
	ErrCodeCredential     ErrorCode = "CREDENTIAL_ERROR"
	ErrCodeCallInProgress ErrorCode = "CALL_IN_PROGRESS"

	// Authentication errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Not found errors
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeRoomNotFound ErrorCode = "ROOM_NOT_FOUND"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error with code and message
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code and message
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the original error
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation errors
func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func MissingFieldError(field string) *AppError {
	return New(ErrCodeMissingField, fmt.Sprintf("missing required field: %s", field))
}

// Transport errors
func TransportError(message string, err error) *AppError {
	return Wrap(ErrCodeTransport, message, err)
}

func DisconnectedError() *AppError {
	return New(ErrCodeDisconnected, "connection is down")
}

// Reconciliation errors
func ReconcileTimeoutError(localID string) *AppError {
	return New(ErrCodeReconcileTimeout, fmt.Sprintf("message %s was never confirmed", localID))
}

// Call errors
func CredentialError(message string, err error) *AppError {
	return Wrap(ErrCodeCredential, message, err)
}

func CallInProgressError() *AppError {
	return New(ErrCodeCallInProgress, "a call attempt is already in flight for this room")
}

// Authentication errors
func UnauthorizedError(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func InvalidTokenError(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

// Not found errors
func NotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func RoomNotFoundError(roomID string) *AppError {
	return New(ErrCodeRoomNotFound, fmt.Sprintf("room %s not found", roomID))
}

// Internal errors
func InternalError(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError extracts AppError from an error, wrapping non-AppErrors as InternalError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err.Error())
}

// HTTPStatus maps an error code to the HTTP status the dev server responds with
func HTTPStatus(err error) int {
	switch GetAppError(err).Code {
	case ErrCodeValidation, ErrCodeMissingField:
		return http.StatusBadRequest
	case ErrCodeUnauthorized, ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrCodeNotFound, ErrCodeRoomNotFound:
		return http.StatusNotFound
	case ErrCodeCallInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
