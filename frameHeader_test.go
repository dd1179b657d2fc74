package http2

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameHeaderWriteAndParseRoundTrip(t *testing.T) {
	ping := AcquireFrame(FramePing).(*Ping)
	ping.SetData([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	fh := AcquireFrameHeader()
	fh.SetStream(0)
	fh.SetBody(ping)

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	_, err := fh.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())
	ReleaseFrameHeader(fh)

	parsed, rest, err := ParseFrame(buf.Bytes(), 0)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, FramePing, parsed.Type())
	assert.EqualValues(t, 0, parsed.Stream())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, parsed.Body().(*Ping).Data())
	ReleaseFrameHeader(parsed)
}

func TestParseFrameNeedsMoreOnShortBuffer(t *testing.T) {
	_, _, err := ParseFrame([]byte{0, 0, 1, 4}, 0)
	assert.ErrorIs(t, err, ErrNeedMore)
}

func TestParseFrameRejectsOversizedPayload(t *testing.T) {
	settings := AcquireFrame(FrameSettings).(*Settings)
	fh := AcquireFrameHeader()
	fh.SetBody(settings)

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	_, err := fh.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())
	ReleaseFrameHeader(fh)

	_, _, err = ParseFrame(buf.Bytes(), 0) // maxFrameSize 0 disables the check
	require.NoError(t, err)

	_, _, err = ParseFrame(append([]byte{0, 0, 100, 4, 0, 0, 0, 0, 0}, make([]byte, 100)...), 16)
	require.Error(t, err)
	assert.Equal(t, FrameSizeError, err.(*Error).Code)
}

func TestParseFrameDiscardsUnknownType(t *testing.T) {
	raw := []byte{0, 0, 0, 0xff, 0, 0, 0, 0, 1} // type 0xff, no payload, stream 1
	fh, rest, err := ParseFrame(raw, 0)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Nil(t, fh.Body(), "unknown frame types must be surfaced with a nil body for the caller to discard")
	ReleaseFrameHeader(fh)
}

func TestReadFrameFromBlockingReader(t *testing.T) {
	goaway := AcquireFrame(FrameGoAway).(*GoAway)
	goaway.SetLastStreamID(7)
	goaway.SetCode(ProtocolError)

	fh := AcquireFrameHeader()
	fh.SetBody(goaway)

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	_, err := fh.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())
	ReleaseFrameHeader(fh)

	br := bufio.NewReader(&buf)
	got, err := ReadFrameFrom(br, 0)
	require.NoError(t, err)
	defer ReleaseFrameHeader(got)

	ga := got.Body().(*GoAway)
	assert.EqualValues(t, 7, ga.LastStreamID())
	assert.Equal(t, ProtocolError, ga.Code())
}
