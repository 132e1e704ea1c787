package domain

import "errors"

// Common errors used throughout the application. The decision engine and
// session manager return these; the API layer maps them to HTTP statuses.
var (
	ErrAccessDenied     = errors.New("access denied")
	ErrNotFound         = errors.New("not found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInternal         = errors.New("internal error")
	ErrCancelled        = errors.New("cancelled")
	ErrAlreadyExists    = errors.New("already exists")
	ErrUnauthorized     = errors.New("unauthorized")
)

// Win32-style diagnostic codes carried alongside the error kind for client
// diagnostics.
const (
	CodeAccessDisabledByPolicy uint32 = 1260       // ERROR_ACCESS_DISABLED_BY_POLICY
	CodeInvalidParameter       uint32 = 87         // ERROR_INVALID_PARAMETER
	CodeCancelled              uint32 = 1223       // ERROR_CANCELLED
	CodeUnexpected             uint32 = 0x8000FFFF // E_UNEXPECTED
)

// ErrorResponse is the JSON error body returned by every endpoint.
type ErrorResponse struct {
	Kind       string `json:"kind"`
	Win32Error uint32 `json:"win32_error"`
	Message    string `json:"message,omitempty"`
}

// NewErrorResponse classifies err into an ErrorResponse.
func NewErrorResponse(err error) ErrorResponse {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return ErrorResponse{Kind: "AccessDenied", Win32Error: CodeAccessDisabledByPolicy, Message: err.Error()}
	case errors.Is(err, ErrNotFound):
		return ErrorResponse{Kind: "NotFound", Win32Error: CodeInvalidParameter, Message: err.Error()}
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, ErrAlreadyExists):
		return ErrorResponse{Kind: "InvalidParameter", Win32Error: CodeInvalidParameter, Message: err.Error()}
	case errors.Is(err, ErrCancelled):
		return ErrorResponse{Kind: "Cancelled", Win32Error: CodeCancelled, Message: err.Error()}
	default:
		return ErrorResponse{Kind: "Internal", Win32Error: CodeUnexpected}
	}
}
