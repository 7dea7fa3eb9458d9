package gqlrequest

import "fmt"

// InputError reports a malformed request shape: bad JSON, undecodable
// variables, or a missing document. It is always recoverable and maps to
// HTTP 400.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// NewInputError builds an InputError with a formatted message.
func NewInputError(format string, args ...interface{}) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}
