package dvbfile

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrParseSyntax reports a malformed line or a missing field.
	ErrParseSyntax = errors.New("syntax error")
	// ErrInvalidValue reports a token or number that fails validation.
	ErrInvalidValue = errors.New("invalid value")
	// ErrCapacityExceeded reports an entry that already holds MaxProperties properties.
	ErrCapacityExceeded = errors.New("too many properties")
	// ErrUnsupportedSystem reports a delivery system a grammar cannot represent.
	ErrUnsupportedSystem = errors.New("unsupported delivery system")
	// ErrUnsupportedValue reports a stored value with no display token.
	ErrUnsupportedValue = errors.New("unsupported value")
	// ErrMissingContext reports a key/value line found before any channel header.
	ErrMissingContext = errors.New("missing channel group")
)

// Error carries one of the sentinel errors above plus where it happened.
// Line is the input line for parsers and the entry number for writers.
type Error struct {
	Kind error
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s: %s at line %d of %s", e.Kind, msg, e.Line, e.File)
	case e.File != "":
		return fmt.Sprintf("%s: %s in %s", e.Kind, msg, e.File)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Kind }

// Kind extracts the sentinel error from err, or nil if err is not an *Error.
func Kind(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// located fills in file/line on an *Error produced deeper in the call chain.
func located(err error, file string, line int) error {
	var e *Error
	if errors.As(err, &e) {
		if e.File == "" {
			e.File = file
		}
		if e.Line == 0 {
			e.Line = line
		}
		return e
	}
	return &Error{Kind: ErrParseSyntax, File: file, Line: line, Msg: err.Error()}
}

var logger = zap.NewNop()

// SetLogger sets the logger used for non-fatal codec warnings.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
