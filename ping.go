package http2

var _ Frame = (*Ping)(nil)

// Ping is the PING frame body, RFC 7540 §6.7. Its payload is always
// exactly 8 opaque bytes.
type Ping struct {
	ack  bool
	data [8]byte
}

func (p *Ping) Type() FrameType { return FramePing }

func (p *Ping) Reset() {
	p.ack = false
	p.data = [8]byte{}
}

func (p *Ping) Ack() bool     { return p.ack }
func (p *Ping) SetAck(v bool) { p.ack = v }

func (p *Ping) Data() []byte { return p.data[:] }

func (p *Ping) SetData(b []byte) {
	n := copy(p.data[:], b)
	for i := n; i < len(p.data); i++ {
		p.data[i] = 0
	}
}

func (p *Ping) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) != 8 {
		return NewError(FrameSizeError, "PING frame must carry exactly 8 bytes")
	}
	p.ack = fh.flags.Has(FlagAck)
	p.SetData(fh.payload)
	return nil
}

func (p *Ping) Serialize(fh *FrameHeader) {
	if p.ack {
		fh.flags = fh.flags.Add(FlagAck)
	}
	fh.setPayload(p.data[:])
}
