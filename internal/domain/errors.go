package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

// ErrConflict covers duplicate initialize, duplicate buy-in on a seat, and a
// cash-out with no frozen entry. Conflicts surface as 400, not 409; clients
// treat them like any other policy rejection.
func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 400}
}

func ErrInsufficientFunds(playerID string, available, requested int64) *AppError {
	return &AppError{
		Code:    "LIMIT_EXCEEDED",
		Message: fmt.Sprintf("insufficient funds for %s: available %d, requested %d", playerID, available, requested),
		Status:  400,
	}
}

func ErrDailyLimit(kind string, remaining, requested int64) *AppError {
	return &AppError{
		Code:    "LIMIT_EXCEEDED",
		Message: fmt.Sprintf("daily %s limit exceeded: remaining %d, requested %d", kind, remaining, requested),
		Status:  400,
	}
}

func ErrMethodNotAllowed(method string) *AppError {
	return &AppError{Code: "METHOD_NOT_ALLOWED", Message: fmt.Sprintf("method %s not allowed", method), Status: 405}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
