package http2

import (
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

// StreamState is one of the seven stream states of RFC 7540 §5.1.
type StreamState int8

const (
	StreamIdle StreamState = iota
	StreamReservedLocal
	StreamReservedRemote
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamReservedLocal:
		return "reserved (local)"
	case StreamReservedRemote:
		return "reserved (remote)"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half-closed (local)"
	case StreamHalfClosedRemote:
		return "half-closed (remote)"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is the per-stream state of spec §3/§4.D: lifecycle tag, both
// flow-control windows, the header-block assembly buffer, accumulated
// body, and the sink the terminal response is delivered to.
//
// A Stream is owned entirely by its Conn's single actor goroutine; it
// is never touched concurrently, so it carries no lock.
type Stream struct {
	id    uint32
	state StreamState

	sendWindow int64
	recvWindow int64

	// headerBuf accumulates HEADERS/PUSH_PROMISE + CONTINUATION
	// fragments until END_HEADERS; spec §3 guarantees at most one
	// assembly is ever in progress connection-wide, but each Stream
	// keeps its own buffer so the bytes are ready the instant its
	// assembly closes.
	headerBuf []byte
	gotHeaders bool // true once the response HEADERS block has been seen (vs. trailers)

	// body accumulates inbound DATA payloads; acquired lazily from
	// bytebufferpool on the first byte received and returned on
	// completion (spec §4.D "accumulated body bytes").
	body *bytebufferpool.ByteBuffer

	// pendingBody is outbound request body still waiting on flow-control
	// credit; pendingEndStream records whether sending the last of it
	// should carry END_STREAM.
	pendingBody      []byte
	pendingEndStream bool

	resp   *fasthttp.Response // caller-owned for a submitted request, conn-owned for a push
	done   chan error         // signaled exactly once when the stream completes
	isPush bool
}

func newStream(id uint32, initialSend, initialRecv uint32) *Stream {
	return &Stream{
		id:         id,
		state:      StreamIdle,
		sendWindow: int64(initialSend),
		recvWindow: int64(initialRecv),
	}
}

func (s *Stream) ID() uint32         { return s.id }
func (s *Stream) State() StreamState { return s.state }

// openLocal transitions idle -> open, invoked when the connection
// sends the request HEADERS for a client-initiated stream.
func (s *Stream) openLocal(endStream bool) error {
	if s.state != StreamIdle {
		return NewStreamError(s.id, ProtocolError, "HEADERS sent on a non-idle stream")
	}
	s.state = StreamOpen
	if endStream {
		return s.closeLocal()
	}
	return nil
}

// reserveRemote transitions idle -> reserved (remote), invoked on
// receipt of a PUSH_PROMISE naming this stream id as promised.
func (s *Stream) reserveRemote() error {
	if s.state != StreamIdle {
		return NewStreamError(s.id, ProtocolError, "PUSH_PROMISE referenced a non-idle stream")
	}
	s.state = StreamReservedRemote
	return nil
}

// closeLocal moves open->half-closed-local or half-closed-remote->closed,
// i.e. records that we (the client) have nothing further to send on
// this stream. On a reserved (remote) stream it changes nothing.
func (s *Stream) closeLocal() error {
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedLocal
	case StreamHalfClosedRemote:
		s.state = StreamClosed
	case StreamReservedRemote:
		// a push stream never has anything to send locally; receiving
		// its response headers is handled by recvHeaders below.
	default:
		return NewStreamError(s.id, StreamClosedError, "END_STREAM sent in state "+s.state.String())
	}
	return nil
}

// recvHeaders processes an inbound HEADERS (response, or a push's
// promised response) arriving on this stream.
func (s *Stream) recvHeaders(endStream bool) error {
	switch s.state {
	case StreamReservedRemote:
		// RFC 7540 §5.1: reserved (remote) -> half-closed (local) on
		// receiving a HEADERS frame; the client never had anything to
		// send on a push stream.
		s.state = StreamHalfClosedLocal
	case StreamOpen, StreamHalfClosedLocal:
		// already open/half-closed-local is fine; state only advances
		// further once endStream is seen, below.
	default:
		return NewStreamError(s.id, StreamClosedError, "HEADERS received in state "+s.state.String())
	}
	s.gotHeaders = true
	if endStream {
		return s.recvEndStream()
	}
	return nil
}

// recvEndStream records that the peer has sent END_STREAM, moving
// open->half-closed-remote or half-closed-local->closed.
func (s *Stream) recvEndStream() error {
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedRemote
	case StreamHalfClosedLocal:
		s.state = StreamClosed
	case StreamHalfClosedRemote, StreamClosed:
		// trailers-only double END_STREAM is a protocol violation on a
		// well-behaved peer, but tolerate idempotent delivery here.
	default:
		return NewStreamError(s.id, StreamClosedError, "END_STREAM received in state "+s.state.String())
	}
	return nil
}

// reset forces the stream directly to closed, from any state, per RFC
// 7540 §5.1's "closed" entry on RST_STREAM sent or received.
func (s *Stream) reset() {
	s.state = StreamClosed
}

func (s *Stream) isClosed() bool { return s.state == StreamClosed }

// canAcceptFrames reports whether frames other than RST_STREAM/PRIORITY
// may still legally arrive on this stream (spec §4.D: "receiving a
// frame on a stream in a state that forbids it is STREAM_CLOSED or
// PROTOCOL_ERROR").
func (s *Stream) canAcceptFrames() bool {
	return s.state != StreamClosed && s.state != StreamIdle
}
