package http2

import "github.com/rfc7540/h2core/h2utils"

var (
	_ Frame            = (*PushPromise)(nil)
	_ FrameWithHeaders = (*PushPromise)(nil)
)

// PushPromise is the PUSH_PROMISE frame body, RFC 7540 §6.6.
type PushPromise struct {
	padded      bool
	endHeaders  bool
	promisedID  uint32
	rawHeaders  []byte
}

func (pp *PushPromise) Type() FrameType { return FramePushPromise }

func (pp *PushPromise) Reset() {
	pp.padded = false
	pp.endHeaders = false
	pp.promisedID = 0
	pp.rawHeaders = pp.rawHeaders[:0]
}

func (pp *PushPromise) PromisedStreamID() uint32 { return pp.promisedID }
func (pp *PushPromise) SetPromisedStreamID(id uint32) {
	pp.promisedID = id & (1<<31 - 1)
}

func (pp *PushPromise) HeaderBlock() []byte   { return pp.rawHeaders }
func (pp *PushPromise) SetHeaderBlock(b []byte) { pp.rawHeaders = append(pp.rawHeaders[:0], b...) }
func (pp *PushPromise) EndHeaders() bool      { return pp.endHeaders }
func (pp *PushPromise) SetEndHeaders(v bool)  { pp.endHeaders = v }
func (pp *PushPromise) SetPadding(v bool)     { pp.padded = v }
func (pp *PushPromise) Padding() bool         { return pp.padded }

func (pp *PushPromise) Deserialize(fh *FrameHeader) error {
	payload := fh.payload

	if fh.flags.Has(FlagPadded) {
		var err error
		payload, err = h2utils.CutPadding(payload)
		if err != nil {
			return NewError(ProtocolError, err.Error())
		}
		pp.padded = true
	}

	if len(payload) < 4 {
		return NewError(FrameSizeError, "PUSH_PROMISE frame too short")
	}

	pp.promisedID = h2utils.BytesToUint32(payload) & (1<<31 - 1)
	pp.rawHeaders = append(pp.rawHeaders[:0], payload[4:]...)
	pp.endHeaders = fh.flags.Has(FlagEndHeaders)

	return nil
}

func (pp *PushPromise) Serialize(fh *FrameHeader) {
	flags := FrameFlags(0)
	if pp.endHeaders {
		flags = flags.Add(FlagEndHeaders)
	}

	payload := h2utils.AppendUint32Bytes(make([]byte, 0, 4+len(pp.rawHeaders)), pp.promisedID)
	payload = append(payload, pp.rawHeaders...)

	if pp.padded {
		flags = flags.Add(FlagPadded)
		payload = h2utils.AddPadding(payload)
	}

	fh.flags = flags
	fh.setPayload(payload)
}
