package command

import "errors"

// ValidationError is a client-side rejection. Its text is shown to the user
// verbatim, so the values below are part of the panel's visible behaviour.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	ErrInvalidExpression ValidationError = "Invalid expression"
	ErrInvalidPin        ValidationError = "Invalid pin"
	ErrInvalidValue      ValidationError = "Invalid value"
	ErrInvalidSyntax     ValidationError = "Invalid syntax"
	ErrUnknownCommand    ValidationError = "Unexpected command name"
)

// ErrEmpty is returned for blank input. Callers ignore it silently.
var ErrEmpty = errors.New("command: empty input")

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}
