package apperror

import "errors"

type Code string

const (
	BadRequest      Code = "BAD_REQUEST"
	NotFound        Code = "NOT_FOUND"
	SessionRejected Code = "SESSION_REJECTED"
	Upstream        Code = "UPSTREAM"
	Internal        Code = "INTERNAL"
)

type AppError struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Wrap tags err with code. The message is err's text and err stays reachable
// through errors.Is and errors.As.
func Wrap(code Code, err error) *AppError {
	return &AppError{code: code, message: err.Error(), cause: err}
}

func (e *AppError) Error() string   { return e.message }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }
func (e *AppError) Unwrap() error   { return e.cause }

// ExitCode maps the error code to a process exit status.
func (e *AppError) ExitCode() int {
	switch e.code {
	case BadRequest:
		return 2
	case NotFound:
		return 3
	case SessionRejected:
		return 4
	case Upstream:
		return 5
	default:
		return 1
	}
}

// Is reports whether err is an AppError carrying code.
func Is(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.code == code
	}
	return false
}
