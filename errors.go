package http2

import (
	"errors"
	"fmt"
)

// ErrorCode is an HTTP/2 error code, RFC 7540 §7 plus the HTTP_1_1_REQUIRED
// code from the same table.
type ErrorCode uint32

const (
	NoError              ErrorCode = 0x0
	ProtocolError        ErrorCode = 0x1
	InternalError        ErrorCode = 0x2
	FlowControlError     ErrorCode = 0x3
	SettingsTimeoutError ErrorCode = 0x4
	StreamClosedError    ErrorCode = 0x5
	FrameSizeError       ErrorCode = 0x6
	RefusedStreamError   ErrorCode = 0x7
	CancelError          ErrorCode = 0x8
	CompressionError     ErrorCode = 0x9
	ConnectError         ErrorCode = 0xa
	EnhanceYourCalmError ErrorCode = 0xb
	InadequateSecurity   ErrorCode = 0xc
	HTTP11Required       ErrorCode = 0xd
)

var codeNames = [...]string{
	NoError:              "NO_ERROR",
	ProtocolError:        "PROTOCOL_ERROR",
	InternalError:        "INTERNAL_ERROR",
	FlowControlError:     "FLOW_CONTROL_ERROR",
	SettingsTimeoutError: "SETTINGS_TIMEOUT",
	StreamClosedError:    "STREAM_CLOSED",
	FrameSizeError:       "FRAME_SIZE_ERROR",
	RefusedStreamError:   "REFUSED_STREAM",
	CancelError:          "CANCEL",
	CompressionError:     "COMPRESSION_ERROR",
	ConnectError:         "CONNECT_ERROR",
	EnhanceYourCalmError: "ENHANCE_YOUR_CALM",
	InadequateSecurity:   "INADEQUATE_SECURITY",
	HTTP11Required:       "HTTP_1_1_REQUIRED",
}

// String renders the RFC 7540 §11.4 registered name of the code.
func (c ErrorCode) String() string {
	if int(c) < len(codeNames) && codeNames[c] != "" {
		return codeNames[c]
	}
	return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint32(c))
}

// Error is a connection- or stream-scoped HTTP/2 protocol error; Stream
// is non-zero for a stream-scoped one. Conn answers the stream-scoped
// violations it detects while dispatching with RST_STREAM (resetStream).
// Any error that frame parsing or dispatch returns, whatever its scope,
// ends the whole Conn: outstanding requests fail with it and the
// transport is closed without a GOAWAY frame being sent.
type Error struct {
	Code   ErrorCode
	Stream uint32 // 0 for connection-scoped errors
	Msg    string
}

func (e *Error) Error() string {
	if e.Stream != 0 {
		return fmt.Sprintf("http2: stream %d: %s: %s", e.Stream, e.Code, e.Msg)
	}
	return fmt.Sprintf("http2: %s: %s", e.Code, e.Msg)
}

// NewError builds a connection-scoped Error.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// NewStreamError builds a stream-scoped Error.
func NewStreamError(stream uint32, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Stream: stream, Msg: msg}
}

// Is reports whether target is an *Error with the same Code, so
// errors.Is(err, NewError(code, "")) matches any Error carrying code,
// whatever its stream or message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

var (
	// ErrUnknownFrame marks a frame type outside the RFC 7540 baseline.
	// Per spec §3 these MUST be discarded, not treated as an error; it
	// is exported so callers of the codec can recognize the case.
	ErrUnknownFrame = errors.New("http2: unknown frame type (discarded)")

	ErrMissingBytes    = errors.New("http2: frame payload too short for its type")
	ErrBadPreface      = errors.New("http2: invalid connection preface")
	ErrNeedMore        = errors.New("http2: not enough bytes buffered yet")
	ErrPayloadExceeds  = errors.New("http2: frame payload exceeds negotiated MAX_FRAME_SIZE")
	ErrServerSupport   = errors.New("http2: server does not support HTTP/2 (no h2 ALPN)")
	ErrConnClosed      = errors.New("http2: connection closed")
	ErrNoAvailableIDs  = errors.New("http2: exhausted 31-bit stream id space")
	ErrContinuationOOO = errors.New("http2: frame interleaved inside an open header block")
)

// WriteError wraps a socket write failure so callers can still match
// the underlying cause with errors.Is/errors.As.
type WriteError struct {
	Err error
}

func (we *WriteError) Error() string  { return fmt.Sprintf("http2: write: %s", we.Err) }
func (we *WriteError) Unwrap() error  { return we.Err }
func (we *WriteError) Is(t error) bool {
	return errors.Is(we.Err, t)
}
