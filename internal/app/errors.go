package app

import "fmt"

// ValidationError marks bad input so the HTTP layer can answer 400 instead
// of 500.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}
