package http2

var (
	_ Frame            = (*Continuation)(nil)
	_ FrameWithHeaders = (*Continuation)(nil)
)

// Continuation is the CONTINUATION frame body, RFC 7540 §6.10. It
// closes a header-block assembly opened by a HEADERS or PUSH_PROMISE
// frame that was sent without END_HEADERS.
type Continuation struct {
	endHeaders bool
	rawHeaders []byte
}

func (c *Continuation) Type() FrameType { return FrameContinuation }

func (c *Continuation) Reset() {
	c.endHeaders = false
	c.rawHeaders = c.rawHeaders[:0]
}

func (c *Continuation) HeaderBlock() []byte     { return c.rawHeaders }
func (c *Continuation) SetHeaderBlock(b []byte) { c.rawHeaders = append(c.rawHeaders[:0], b...) }
func (c *Continuation) EndHeaders() bool        { return c.endHeaders }
func (c *Continuation) SetEndHeaders(v bool)    { c.endHeaders = v }

func (c *Continuation) Deserialize(fh *FrameHeader) error {
	c.endHeaders = fh.flags.Has(FlagEndHeaders)
	c.rawHeaders = append(c.rawHeaders[:0], fh.payload...)
	return nil
}

func (c *Continuation) Serialize(fh *FrameHeader) {
	if c.endHeaders {
		fh.flags = fh.flags.Add(FlagEndHeaders)
	}
	fh.setPayload(c.rawHeaders)
}
