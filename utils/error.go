package utils

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorKind is the machine-readable failure class surfaced to clients.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindForbidden    ErrorKind = "FORBIDDEN"
	KindConflict     ErrorKind = "CONFLICT"
	KindValidation   ErrorKind = "VALIDATION_ERROR"
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	KindInternal     ErrorKind = "INTERNAL"
)

// AppError carries a kind plus a human-readable message. Operations return it
// so handlers can map failures to HTTP statuses without string matching.
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NotFoundError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ForbiddenError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func UnauthorizedError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// AsAppError normalizes any error into an AppError. Unknown errors become
// KindInternal; the gorm-not-found sentinel becomes KindNotFound.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return &AppError{Kind: KindNotFound, Message: err.Error()}
	}
	return &AppError{Kind: KindInternal, Message: err.Error()}
}

// HTTPStatus maps an error kind to the response status code.
func HTTPStatus(err error) int {
	switch AsAppError(err).Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
