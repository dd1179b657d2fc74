package http2

import "github.com/rfc7540/h2core/h2utils"

var _ Frame = (*Priority)(nil)

// Priority is the PRIORITY frame body, RFC 7540 §6.3. This core treats
// received PRIORITY frames as advisory and simply discards them after
// parsing (stream prioritization is out of scope, spec §1).
type Priority struct {
	streamDep uint32
	exclusive bool
	weight    uint8
}

func (p *Priority) Type() FrameType { return FramePriority }

func (p *Priority) Reset() {
	p.streamDep = 0
	p.exclusive = false
	p.weight = 0
}

func (p *Priority) StreamDep() uint32 { return p.streamDep }
func (p *Priority) Exclusive() bool   { return p.exclusive }
func (p *Priority) Weight() uint8     { return p.weight }

func (p *Priority) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) < 5 {
		return NewStreamError(fh.stream, FrameSizeError, "PRIORITY frame too short")
	}
	dep := h2utils.BytesToUint32(fh.payload)
	p.exclusive = dep&0x80000000 != 0
	p.streamDep = dep & (1<<31 - 1)
	p.weight = fh.payload[4]
	return nil
}

func (p *Priority) Serialize(fh *FrameHeader) {
	payload := make([]byte, 5)
	dep := p.streamDep
	if p.exclusive {
		dep |= 0x80000000
	}
	h2utils.Uint32ToBytes(payload, dep)
	payload[4] = p.weight
	fh.setPayload(payload)
}
