package http2

import (
	"bufio"
	"io"
	"sync"

	"github.com/rfc7540/h2core/h2utils"
)

// FrameHeaderLen is the fixed 9-byte frame header size of RFC 7540 §4.1.
const FrameHeaderLen = 9

// FrameHeader is the 9-byte header plus payload of one HTTP/2 frame,
// paired with the decoded/encoded Frame body it carries.
//
// Use AcquireFrameHeader/ReleaseFrameHeader to reuse allocations across
// frames; a FrameHeader must not be shared across goroutines.
type FrameHeader struct {
	length int
	kind   FrameType
	flags  FrameFlags
	stream uint32

	maxLen uint32

	raw     [FrameHeaderLen]byte
	payload []byte

	body Frame
}

var frameHeaderPool = sync.Pool{
	New: func() interface{} { return &FrameHeader{} },
}

// AcquireFrameHeader returns a reset FrameHeader from the pool.
func AcquireFrameHeader() *FrameHeader {
	fh := frameHeaderPool.Get().(*FrameHeader)
	fh.reset()
	return fh
}

// ReleaseFrameHeader releases fh's body back to its pool and returns
// fh itself to the FrameHeader pool.
func ReleaseFrameHeader(fh *FrameHeader) {
	if fh.body != nil {
		ReleaseFrame(fh.body)
	}
	frameHeaderPool.Put(fh)
}

func (fh *FrameHeader) reset() {
	fh.length = 0
	fh.kind = 0
	fh.flags = 0
	fh.stream = 0
	fh.maxLen = DefaultMaxFrameSize
	fh.payload = fh.payload[:0]
	fh.body = nil
}

// Type returns the frame type.
func (fh *FrameHeader) Type() FrameType { return fh.kind }

// Flags returns the frame flags.
func (fh *FrameHeader) Flags() FrameFlags { return fh.flags }

// SetFlags overwrites the frame flags.
func (fh *FrameHeader) SetFlags(f FrameFlags) { fh.flags = f }

// Stream returns the frame's stream id (0 for connection-level frames).
func (fh *FrameHeader) Stream() uint32 { return fh.stream }

// SetStream sets the frame's stream id.
func (fh *FrameHeader) SetStream(id uint32) { fh.stream = id & (1<<31 - 1) }

// Len returns the decoded payload length.
func (fh *FrameHeader) Len() int { return fh.length }

// MaxLen returns the negotiated MAX_FRAME_SIZE this header was parsed
// or will be serialized against.
func (fh *FrameHeader) MaxLen() uint32 { return fh.maxLen }

// SetMaxLen sets the MAX_FRAME_SIZE reported by MaxLen. Parsing is
// bounded by the maxFrameSize argument of ParseFrame/ReadFrameFrom, not
// by this value.
func (fh *FrameHeader) SetMaxLen(max uint32) { fh.maxLen = max }

// Body returns the decoded Frame payload, or nil if none has been set.
func (fh *FrameHeader) Body() Frame { return fh.body }

// SetBody attaches fr as fh's payload and sets fh's type to match.
func (fh *FrameHeader) SetBody(fr Frame) {
	fh.body = fr
	fh.kind = fr.Type()
}

func (fh *FrameHeader) setPayload(b []byte) {
	fh.payload = append(fh.payload[:0], b...)
	fh.length = len(fh.payload)
}

func (fh *FrameHeader) parseValues(header []byte) {
	fh.length = int(h2utils.BytesToUint24(header[:3]))
	fh.kind = FrameType(header[3])
	fh.flags = FrameFlags(header[4])
	fh.stream = h2utils.BytesToUint32(header[5:]) & (1<<31 - 1)
}

func (fh *FrameHeader) packValues(header []byte) {
	h2utils.Uint24ToBytes(header[:3], uint32(fh.length))
	header[3] = byte(fh.kind)
	header[4] = byte(fh.flags)
	h2utils.Uint32ToBytes(header[5:], fh.stream)
}

// ParseFrame implements the pull-parser contract of spec §4.A:
// parse(bytes) → (frame, rest) | need-more | error. buf is never
// retained; on success fh owns copies of the relevant bytes.
//
// When the frame type is outside the RFC 7540 baseline, ParseFrame
// returns a FrameHeader with a nil Body and a nil error: callers MUST
// discard it silently, per spec §3.
func ParseFrame(buf []byte, maxFrameSize uint32) (fh *FrameHeader, rest []byte, err error) {
	if len(buf) < FrameHeaderLen {
		return nil, buf, ErrNeedMore
	}

	fh = AcquireFrameHeader()
	fh.maxLen = maxFrameSize
	fh.parseValues(buf[:FrameHeaderLen])

	if maxFrameSize != 0 && uint32(fh.length) > maxFrameSize {
		ReleaseFrameHeader(fh)
		return nil, buf, NewError(FrameSizeError, "frame length exceeds MAX_FRAME_SIZE")
	}

	total := FrameHeaderLen + fh.length
	if len(buf) < total {
		ReleaseFrameHeader(fh)
		return nil, buf, ErrNeedMore
	}

	fh.payload = append(fh.payload[:0], buf[FrameHeaderLen:total]...)
	rest = buf[total:]

	if fh.kind > maxKnownFrameType {
		// spec §3: unknown frame types MUST be discarded.
		return fh, rest, nil
	}

	body := AcquireFrame(fh.kind)
	fh.body = body
	if err = body.Deserialize(fh); err != nil {
		ReleaseFrameHeader(fh)
		return nil, rest, err
	}

	return fh, rest, nil
}

// ReadFrameFrom blocks on br until one full frame has been read, or
// returns the underlying read error (including io.EOF on a clean
// close). maxFrameSize bounds the accepted payload length.
func ReadFrameFrom(br *bufio.Reader, maxFrameSize uint32) (*FrameHeader, error) {
	var header [FrameHeaderLen]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, err
	}

	fh := AcquireFrameHeader()
	fh.maxLen = maxFrameSize
	fh.parseValues(header[:])

	if maxFrameSize != 0 && uint32(fh.length) > maxFrameSize {
		io.CopyN(io.Discard, br, int64(fh.length))
		ReleaseFrameHeader(fh)
		return nil, NewError(FrameSizeError, "frame length exceeds MAX_FRAME_SIZE")
	}

	if fh.length > 0 {
		fh.payload = h2utils.Resize(fh.payload, fh.length)
		if _, err := io.ReadFull(br, fh.payload); err != nil {
			ReleaseFrameHeader(fh)
			return nil, err
		}
	}

	if fh.kind > maxKnownFrameType {
		return fh, nil // discarded by caller, per spec §3
	}

	body := AcquireFrame(fh.kind)
	fh.body = body
	if err := body.Deserialize(fh); err != nil {
		ReleaseFrameHeader(fh)
		return nil, err
	}

	return fh, nil
}

// WriteTo serializes fh's body (if any) and writes header+payload to bw.
func (fh *FrameHeader) WriteTo(bw *bufio.Writer) (int64, error) {
	if fh.body != nil {
		fh.body.Serialize(fh)
	}

	fh.packValues(fh.raw[:])

	n, err := bw.Write(fh.raw[:])
	nn := int64(n)
	if err == nil {
		n, err = bw.Write(fh.payload)
		nn += int64(n)
	}
	return nn, err
}
