package http2

import "github.com/rfc7540/h2core/h2utils"

var _ Frame = (*WindowUpdate)(nil)

// WindowUpdate is the WINDOW_UPDATE frame body, RFC 7540 §6.9.
type WindowUpdate struct {
	increment uint32
}

func (wu *WindowUpdate) Type() FrameType { return FrameWindowUpdate }

func (wu *WindowUpdate) Reset() { wu.increment = 0 }

func (wu *WindowUpdate) Increment() uint32     { return wu.increment }
func (wu *WindowUpdate) SetIncrement(n uint32) { wu.increment = n & (1<<31 - 1) }

func (wu *WindowUpdate) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) != 4 {
		return NewError(FrameSizeError, "WINDOW_UPDATE frame must carry exactly 4 bytes")
	}

	wu.increment = h2utils.BytesToUint32(fh.payload) & (1<<31 - 1)

	if wu.increment == 0 {
		// spec §4.A: zero increment is PROTOCOL_ERROR at the connection
		// level (stream 0) and FLOW_CONTROL_ERROR scoped to the stream.
		if fh.stream == 0 {
			return NewError(ProtocolError, "WINDOW_UPDATE with zero increment on stream 0")
		}
		return NewStreamError(fh.stream, FlowControlError, "WINDOW_UPDATE with zero increment")
	}

	return nil
}

func (wu *WindowUpdate) Serialize(fh *FrameHeader) {
	fh.setPayload(h2utils.AppendUint32Bytes(nil, wu.increment))
}
