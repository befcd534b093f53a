package game

import "errors"

// ErrNoQuestions is returned when the catalog is empty. It is a data/
// configuration state, not a caller mistake, and is surfaced separately
// from validation errors.
var ErrNoQuestions = errors.New("no questions available")

// ErrQuestionNotFound is returned when a question id does not exist.
var ErrQuestionNotFound = errors.New("question not found")

// ErrDuplicateGuess reports that the ledger already holds an entry for a
// (session, question, normalized name) triple. The store layer translates
// unique-constraint violations into this error; the evaluator resolves it
// into the normal "already guessed" outcome.
var ErrDuplicateGuess = errors.New("guess already recorded")

// ValidationError marks a caller mistake (empty guess, oversized guess,
// malformed input). The HTTP layer maps these to 400 responses.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(msg string) error { return &ValidationError{Msg: msg} }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
