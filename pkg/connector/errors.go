package connector

// ErrorCode is the closed, normalized connector error set of §4.5.
type ErrorCode string

const (
	CodeTimeout            ErrorCode = "CONNECTOR_TIMEOUT"
	CodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"

	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeAuthFailed     ErrorCode = "AUTH_FAILED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeInvalidAction  ErrorCode = "INVALID_ACTION"
	CodeInternalError  ErrorCode = "INTERNAL_ERROR"
	CodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
)

var retryable = map[ErrorCode]bool{
	CodeTimeout:            true,
	CodeConnectionFailed:   true,
	CodeServiceUnavailable: true,
	CodeRateLimited:        true,
}

// Error is the closed error type every connector invocation returns on
// failure. It is never a panic and never wraps a plain Go error across
// the invoker boundary — callers switch on Code.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a normalized connector error, deriving Retryable from
// Code so callers never have to remember the closed retryable set.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable[code]}
}

// FromHTTPStatus maps an HTTP status code from a connector's underlying
// transport onto the normalized error set (§4.5).
func FromHTTPStatus(status int, message string) *Error {
	switch {
	case status == 401 || status == 403:
		return NewError(CodeAuthFailed, message)
	case status == 404:
		return NewError(CodeNotFound, message)
	case status == 429:
		return NewError(CodeRateLimited, message)
	case status >= 500:
		return NewError(CodeServiceUnavailable, message)
	default:
		return NewError(CodeInvalidInput, message)
	}
}
