package flowercare

import "errors"

// Kind classifies the errors returned by this package.
type Kind int

const (
	// KindConnection covers operations attempted without a connected
	// session and transport failures while connecting.
	KindConnection Kind = iota
	// KindDevice covers transport write/read failures on an established
	// connection.
	KindDevice
	// KindParsing covers malformed or out-of-range payloads.
	KindParsing
	// KindTimeout covers bounded operations that exceeded their deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindDevice:
		return "device"
	case KindParsing:
		return "parsing"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the error type returned by all operations in this package. It
// carries the failing operation, a kind for programmatic handling, and the
// underlying transport cause when there is one.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is or wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
