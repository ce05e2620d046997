package extract

import (
	"errors"
	"fmt"

	"github.com/dgallion1/hansardgest/internal/markup"
)

// Document-level failures. None of them is worth retrying: the same input
// always fails the same way.
var (
	ErrEmptyDocument    = markup.ErrEmptyDocument
	ErrUnparsableMarkup = markup.ErrUnparsableMarkup
	ErrNoSessionDate    = errors.New("no resolvable session date")
	ErrNoChambers       = errors.New("no chamber segments")
)

// Error is returned by Extract for every per-document failure. Kind is one
// of the labels reported by FailureKind.
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: FailureKind(err), Err: err}
}

// FailureKind returns a short label for err, suitable for metrics and job
// status. Unknown errors map to "internal".
func FailureKind(err error) string {
	var e *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &e) && e.Kind != "":
		return e.Kind
	case errors.Is(err, ErrEmptyDocument):
		return "empty_document"
	case errors.Is(err, ErrUnparsableMarkup):
		return "unparsable_markup"
	case errors.Is(err, ErrNoSessionDate):
		return "no_session_date"
	case errors.Is(err, ErrNoChambers):
		return "no_chambers"
	}
	return "internal"
}

// IsDocumentFailure reports whether err is one of the engine's own
// per-document failures, as opposed to an infrastructure error.
func IsDocumentFailure(err error) bool {
	return errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, ErrUnparsableMarkup) ||
		errors.Is(err, ErrNoSessionDate) ||
		errors.Is(err, ErrNoChambers)
}
