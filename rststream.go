package http2

import "github.com/rfc7540/h2core/h2utils"

var _ Frame = (*RstStream)(nil)

// RstStream is the RST_STREAM frame body, RFC 7540 §6.4.
type RstStream struct {
	code ErrorCode
}

func (r *RstStream) Type() FrameType { return FrameRstStream }

func (r *RstStream) Reset() { r.code = 0 }

func (r *RstStream) Code() ErrorCode     { return r.code }
func (r *RstStream) SetCode(c ErrorCode) { r.code = c }

func (r *RstStream) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) < 4 {
		return NewStreamError(fh.stream, FrameSizeError, "RST_STREAM frame too short")
	}
	r.code = ErrorCode(h2utils.BytesToUint32(fh.payload))
	return nil
}

func (r *RstStream) Serialize(fh *FrameHeader) {
	fh.setPayload(h2utils.AppendUint32Bytes(nil, uint32(r.code)))
}
