// Package queryerr holds the query error taxonomy. Query errors
// never abort anything; they are returned through the query's own result
// channel to the caller.
package queryerr

import "fmt"

// Kind enumerates the closed set of query failure kinds.
type Kind string

const (
	KindDecodingError         Kind = "decoding-error"
	KindUnsupportedVersion    Kind = "unsupported-query-version"
	KindInvalidArgument       Kind = "invalid-argument"
	KindNotFound              Kind = "not-found"
	KindIncorrectProof        Kind = "incorrect-proof"
	KindDeadlineExceeded      Kind = "deadline-exceeded"
)

// Error describes why a query could not be served or a proof could not be
// verified.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("query error [%s]: %s", e.Kind, e.Message)
}

// New constructs a query Error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs a query Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
