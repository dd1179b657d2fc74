package http2

import "github.com/valyala/fasthttp"

// EventKind tags the four upward event kinds spec §6 enumerates.
type EventKind uint8

const (
	EventStreamCompleted EventKind = iota
	EventPushPromise
	EventPing
	EventPong
	EventConnectionClosed
)

func (k EventKind) String() string {
	switch k {
	case EventStreamCompleted:
		return "stream-completed"
	case EventPushPromise:
		return "push-promise"
	case EventPing:
		return "ping-received"
	case EventPong:
		return "pong-received"
	case EventConnectionClosed:
		return "connection-closed"
	default:
		return "unknown-event"
	}
}

// Event is delivered, in arrival order, on the Conn's event channel.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	StreamID uint32
	Response *fasthttp.Response // EventStreamCompleted
	Err      error              // EventStreamCompleted (non-nil on failure) or EventConnectionClosed reason

	Push *PushDescriptor // EventPushPromise

	PingData [8]byte // EventPing / EventPong
}

// PushDescriptor describes a server-initiated promise: the parent
// stream it arrived on, the even-numbered stream id reserved for it,
// and the synthetic request headers the server claims it would have
// received. It matures into a stream-completed event for
// PromisedStreamID once the pushed response finishes (spec §4.D, §8
// scenario 6).
type PushDescriptor struct {
	ParentStreamID   uint32
	PromisedStreamID uint32
	Request          *fasthttp.Request
}
