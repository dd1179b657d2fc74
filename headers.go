package http2

import "github.com/rfc7540/h2core/h2utils"

var (
	_ Frame            = (*Headers)(nil)
	_ FrameWithHeaders = (*Headers)(nil)
)

// FrameWithHeaders is implemented by the two frame bodies that carry a
// (possibly incomplete) HPACK header block: Headers and Continuation.
type FrameWithHeaders interface {
	Frame
	HeaderBlock() []byte
	EndHeaders() bool
}

// Headers is the HEADERS frame body, RFC 7540 §6.2.
type Headers struct {
	padded      bool
	hasPriority bool
	streamDep   uint32
	exclusive   bool
	weight      uint8
	endStream   bool
	endHeaders  bool
	rawHeaders  []byte
}

func (h *Headers) Type() FrameType { return FrameHeaders }

func (h *Headers) Reset() {
	h.padded = false
	h.hasPriority = false
	h.streamDep = 0
	h.exclusive = false
	h.weight = 0
	h.endStream = false
	h.endHeaders = false
	h.rawHeaders = h.rawHeaders[:0]
}

// HeaderBlock returns the (fragment of the) HPACK header block carried
// by this frame.
func (h *Headers) HeaderBlock() []byte { return h.rawHeaders }

// SetHeaderBlock replaces the raw header block with b.
func (h *Headers) SetHeaderBlock(b []byte) { h.rawHeaders = append(h.rawHeaders[:0], b...) }

// AppendHeaderField HPACK-encodes hf and appends it to the frame's
// header block, optionally inserting it into the encoder's dynamic
// table (incrementalIndex).
func (h *Headers) AppendHeaderField(hp *HPACK, hf *HeaderField, incrementalIndex bool) {
	h.rawHeaders = hp.AppendHeader(h.rawHeaders, hf, incrementalIndex)
}

func (h *Headers) SetEndStream(v bool)  { h.endStream = v }
func (h *Headers) EndStream() bool      { return h.endStream }
func (h *Headers) SetEndHeaders(v bool) { h.endHeaders = v }
func (h *Headers) EndHeaders() bool     { return h.endHeaders }
func (h *Headers) SetPadding(v bool)    { h.padded = v }
func (h *Headers) Padding() bool        { return h.padded }

// SetPriority attaches the optional 5-byte priority prefix (RFC 7540
// §6.2) of a HEADERS frame.
func (h *Headers) SetPriority(streamDep uint32, exclusive bool, weight uint8) {
	h.hasPriority = true
	h.streamDep = streamDep
	h.exclusive = exclusive
	h.weight = weight
}

func (h *Headers) HasPriority() bool   { return h.hasPriority }
func (h *Headers) StreamDep() uint32   { return h.streamDep }
func (h *Headers) Exclusive() bool     { return h.exclusive }
func (h *Headers) Weight() uint8       { return h.weight }

func (h *Headers) Deserialize(fh *FrameHeader) error {
	payload := fh.payload

	if fh.flags.Has(FlagPadded) {
		var err error
		payload, err = h2utils.CutPadding(payload)
		if err != nil {
			return NewError(ProtocolError, err.Error())
		}
		h.padded = true
	}

	if fh.flags.Has(FlagPriority) {
		if len(payload) < 5 {
			return NewError(FrameSizeError, "HEADERS priority prefix truncated")
		}
		dep := h2utils.BytesToUint32(payload)
		h.hasPriority = true
		h.exclusive = dep&0x80000000 != 0
		h.streamDep = dep & (1<<31 - 1)
		h.weight = payload[4]
		payload = payload[5:]
	}

	h.endStream = fh.flags.Has(FlagEndStream)
	h.endHeaders = fh.flags.Has(FlagEndHeaders)
	h.rawHeaders = append(h.rawHeaders[:0], payload...)

	return nil
}

func (h *Headers) Serialize(fh *FrameHeader) {
	flags := FrameFlags(0)
	if h.endStream {
		flags = flags.Add(FlagEndStream)
	}
	if h.endHeaders {
		flags = flags.Add(FlagEndHeaders)
	}

	payload := h.rawHeaders

	if h.hasPriority {
		flags = flags.Add(FlagPriority)
		prefix := make([]byte, 5)
		dep := h.streamDep
		if h.exclusive {
			dep |= 0x80000000
		}
		h2utils.Uint32ToBytes(prefix, dep)
		prefix[4] = h.weight
		payload = append(prefix, payload...)
	}

	if h.padded {
		flags = flags.Add(FlagPadded)
		payload = h2utils.AddPadding(payload)
	}

	fh.flags = flags
	fh.setPayload(payload)
}
