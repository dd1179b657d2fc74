package http2

import "github.com/rfc7540/h2core/h2utils"

var _ Frame = (*Data)(nil)

// Data is the DATA frame body, RFC 7540 §6.1.
type Data struct {
	endStream bool
	padded    bool
	b         []byte
}

func (d *Data) Type() FrameType { return FrameData }

func (d *Data) Reset() {
	d.endStream = false
	d.padded = false
	d.b = d.b[:0]
}

// CopyTo copies d's fields into other.
func (d *Data) CopyTo(other *Data) {
	other.endStream = d.endStream
	other.padded = d.padded
	other.b = append(other.b[:0], d.b...)
}

func (d *Data) SetEndStream(v bool) { d.endStream = v }
func (d *Data) EndStream() bool     { return d.endStream }

func (d *Data) SetPadding(v bool) { d.padded = v }
func (d *Data) Padding() bool     { return d.padded }

// Data returns the frame's data bytes, excluding any padding.
func (d *Data) Data() []byte { return d.b }

// SetData replaces the frame's data bytes with b.
func (d *Data) SetData(b []byte) { d.b = append(d.b[:0], b...) }

// Len returns the number of data bytes (excluding padding).
func (d *Data) Len() int { return len(d.b) }

func (d *Data) Deserialize(fh *FrameHeader) error {
	payload := fh.payload

	if fh.flags.Has(FlagPadded) {
		var err error
		payload, err = h2utils.CutPadding(payload)
		if err != nil {
			return NewStreamError(fh.stream, ProtocolError, err.Error())
		}
	}

	d.endStream = fh.flags.Has(FlagEndStream)
	d.padded = fh.flags.Has(FlagPadded)
	d.b = append(d.b[:0], payload...)

	return nil
}

func (d *Data) Serialize(fh *FrameHeader) {
	if d.endStream {
		fh.flags = fh.flags.Add(FlagEndStream)
	}

	payload := d.b
	if d.padded {
		fh.flags = fh.flags.Add(FlagPadded)
		payload = h2utils.AddPadding(d.b)
	}

	fh.setPayload(payload)
}
