package vision

import (
	"errors"
	"fmt"
)

// Common AI extraction errors
var (
	// ErrMissingAPIKey is returned when no OpenAI API key is configured.
	ErrMissingAPIKey = errors.New("missing OpenAI API key: set OPENAI_API_KEY environment variable")

	// ErrNoResponse is returned when the model returns no choices.
	ErrNoResponse = errors.New("no response from model")

	// ErrInvalidResponse is returned when the model output cannot be parsed
	// as an invoice JSON object.
	ErrInvalidResponse = errors.New("model returned no parseable invoice JSON")
)

// GuessError wraps errors with context about the failed AI extraction.
type GuessError struct {
	// Op is the operation that failed (e.g., "ExtractInvoice").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

func (e *GuessError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("vision: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("vision: %s failed: %v", e.Op, e.Err)
}

func (e *GuessError) Unwrap() error {
	return e.Err
}

func (e *GuessError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapGuessError wraps an error as a GuessError unless it already is one.
func WrapGuessError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var guessErr *GuessError
	if errors.As(err, &guessErr) {
		return err
	}

	return &GuessError{Op: op, Err: err, Details: details}
}
