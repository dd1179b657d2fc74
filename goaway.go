package http2

import (
	"fmt"

	"github.com/rfc7540/h2core/h2utils"
)

var _ Frame = (*GoAway)(nil)

// GoAway is the GOAWAY frame body, RFC 7540 §6.8.
type GoAway struct {
	lastStreamID uint32
	code         ErrorCode
	data         []byte
}

func (ga *GoAway) Type() FrameType { return FrameGoAway }

func (ga *GoAway) Reset() {
	ga.lastStreamID = 0
	ga.code = 0
	ga.data = ga.data[:0]
}

func (ga *GoAway) Error() string {
	return fmt.Sprintf("GOAWAY last_stream_id=%d code=%s data=%q", ga.lastStreamID, ga.code, ga.data)
}

func (ga *GoAway) LastStreamID() uint32    { return ga.lastStreamID }
func (ga *GoAway) SetLastStreamID(id uint32) { ga.lastStreamID = id & (1<<31 - 1) }
func (ga *GoAway) Code() ErrorCode         { return ga.code }
func (ga *GoAway) SetCode(c ErrorCode)     { ga.code = c }
func (ga *GoAway) Data() []byte            { return ga.data }
func (ga *GoAway) SetData(b []byte)        { ga.data = append(ga.data[:0], b...) }

func (ga *GoAway) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) < 8 {
		return NewError(FrameSizeError, "GOAWAY frame too short")
	}

	ga.lastStreamID = h2utils.BytesToUint32(fh.payload) & (1<<31 - 1)
	ga.code = ErrorCode(h2utils.BytesToUint32(fh.payload[4:]))

	if len(fh.payload) > 8 {
		ga.data = append(ga.data[:0], fh.payload[8:]...)
	} else {
		ga.data = ga.data[:0]
	}

	return nil
}

func (ga *GoAway) Serialize(fh *FrameHeader) {
	payload := h2utils.AppendUint32Bytes(make([]byte, 0, 8+len(ga.data)), ga.lastStreamID)
	payload = h2utils.AppendUint32Bytes(payload, uint32(ga.code))
	payload = append(payload, ga.data...)
	fh.setPayload(payload)
}
