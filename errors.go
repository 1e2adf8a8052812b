package streamcable

import "fmt"

// Kind classifies the outcome of a failed encode or decode.
type Kind int

const (
	// KindValidation means a value did not conform to its schema. Raised
	// before any bytes are written; never retried.
	KindValidation Kind = iota + 1
	// KindIO means the underlying sink or source returned an error.
	KindIO
	// KindOutOfData means the source ended before the schema was fully consumed.
	KindOutOfData
	// KindInvalidData means the transport was well-formed but its content
	// was illegal: an unknown tag, bad UTF-8, an out-of-range flag, a union
	// index overflow, or a frame received on an already-closed sub-stream.
	KindInvalidData
	// KindUnsupported means the operation is reserved but not implemented.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindIO:
		return "io"
	case KindOutOfData:
		return "out of data"
	case KindInvalidData:
		return "invalid data"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every streamcable operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return fmt.Sprintf("streamcable: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("streamcable: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Msg == "" {
		return fmt.Sprintf("streamcable: %s", e.Kind)
	}
	return fmt.Sprintf("streamcable: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind and with no Msg
// and no wrapped Err, so callers can write errors.Is(err,
// streamcable.ErrOutOfData) style checks without caring about err's
// message. A target that carries a message matches only itself.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func validationErr(format string, args ...any) *Error {
	return newErr(KindValidation, fmt.Sprintf(format, args...))
}

func invalidDataErr(format string, args ...any) *Error {
	return newErr(KindInvalidData, fmt.Sprintf(format, args...))
}

func unsupportedErr(format string, args ...any) *Error {
	return newErr(KindUnsupported, fmt.Sprintf(format, args...))
}

// Sentinel errors. Use errors.Is to check against these. ErrOutOfData has
// no message, so every KindOutOfData error matches it via (*Error).Is; the
// others carry a message and match only themselves.
var (
	// ErrOutOfData means the source ended before the schema was fully consumed.
	ErrOutOfData = newErr(KindOutOfData, "")
	// ErrNoSchema means the wire header had no embedded schema and the
	// caller supplied no expected schema to decode against.
	ErrNoSchema = newErr(KindInvalidData, "no schema in stream and no expected schema provided")
	// ErrStreamCapacityExceeded means the multiplexer's 65534 active
	// sub-stream cap has been reached.
	ErrStreamCapacityExceeded = newErr(KindUnsupported, "maximum concurrent sub-streams exceeded")
	// ErrWriterClosed means a StreamWriter's Write/Close/Error was called
	// after the sub-stream had already reached a terminal state.
	ErrWriterClosed = newErr(KindInvalidData, "sub-stream writer already closed")
)
