package http2

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

// dialPair wires a Conn to one end of an in-process net.Pipe, drives the
// handshake by hand playing the peer's role, and starts the Conn's
// goroutines, returning the peer's own buffered reader/writer so a test
// can keep acting as the remote endpoint.
func dialPair(t *testing.T) (c *Conn, br *bufio.Reader, bw *bufio.Writer, peer net.Conn) {
	t.Helper()

	clientSide, peerSide := net.Pipe()
	c = newConn(clientSide, ConnOpts{PingInterval: time.Hour})

	errCh := make(chan error, 1)
	go func() { errCh <- c.handshake() }()

	br = bufio.NewReader(peerSide)
	bw = bufio.NewWriter(peerSide)

	preface := make([]byte, len(clientPreface))
	_, err := io.ReadFull(br, preface)
	require.NoError(t, err)
	assert.Equal(t, clientPreface, preface)

	fh, err := ReadFrameFrom(br, 0)
	require.NoError(t, err)
	require.Equal(t, FrameSettings, fh.Type())
	ReleaseFrameHeader(fh)

	writeFrame(t, bw, 0, AcquireFrame(FrameSettings))

	// handshake writes its SETTINGS ACK before returning, and net.Pipe
	// has no buffering, so the ACK must be read before waiting on errCh.
	ackFh, err := ReadFrameFrom(br, 0)
	require.NoError(t, err)
	assert.True(t, ackFh.Body().(*Settings).Ack())
	ReleaseFrameHeader(ackFh)

	require.NoError(t, <-errCh)

	go c.readLoop()
	go c.run()

	return c, br, bw, peerSide
}

func writeFrame(t *testing.T, bw *bufio.Writer, streamID uint32, body Frame) {
	t.Helper()
	fh := AcquireFrameHeader()
	fh.SetStream(streamID)
	fh.SetBody(body)
	_, err := fh.WriteTo(bw)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())
	ReleaseFrameHeader(fh)
}

func newGetRequest(uri string) (*fasthttp.Request, *fasthttp.Response) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	req.Header.SetMethod("GET")
	req.SetRequestURI(uri)
	return req, resp
}

func TestRoundTripHappyPath(t *testing.T) {
	c, br, bw, peer := dialPair(t)
	defer peer.Close()

	req, resp := newGetRequest("https://example.com/foo")
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	done := make(chan error, 1)
	go func() { done <- c.RoundTrip(context.Background(), req, resp) }()

	fh, err := ReadFrameFrom(br, 0)
	require.NoError(t, err)
	require.Equal(t, FrameHeaders, fh.Type())
	require.EqualValues(t, 1, fh.Stream())
	h := fh.Body().(*Headers)
	assert.True(t, h.EndStream(), "GET with no body must carry END_STREAM")
	ReleaseFrameHeader(fh)

	enc := AcquireHPACK()
	defer ReleaseHPACK(enc)

	respH := AcquireFrame(FrameHeaders).(*Headers)
	hf := AcquireHeaderField()
	hf.SetBytes(StringStatus, []byte("200"))
	respH.AppendHeaderField(enc, hf, true)
	ReleaseHeaderField(hf)
	respH.SetEndHeaders(true)
	respH.SetEndStream(true)
	writeFrame(t, bw, 1, respH)

	require.NoError(t, <-done)
	assert.Equal(t, 200, resp.StatusCode())
}

func TestContinuationInterleavingIsProtocolError(t *testing.T) {
	c, br, bw, peer := dialPair(t)
	defer peer.Close()

	req, resp := newGetRequest("https://example.com/foo")
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	done := make(chan error, 1)
	go func() { done <- c.RoundTrip(context.Background(), req, resp) }()

	fh, err := ReadFrameFrom(br, 0)
	require.NoError(t, err)
	ReleaseFrameHeader(fh)

	h := AcquireFrame(FrameHeaders).(*Headers)
	h.SetEndHeaders(false)
	writeFrame(t, bw, 1, h)

	ping := AcquireFrame(FramePing).(*Ping)
	writeFrame(t, bw, 0, ping)

	err = <-done
	require.Error(t, err)
	assert.Equal(t, ProtocolError, err.(*Error).Code)
}

func TestGoAwayRefusesStreamsAboveLastID(t *testing.T) {
	c, br, bw, peer := dialPair(t)
	defer peer.Close()

	req, resp := newGetRequest("https://example.com/foo")
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	done := make(chan error, 1)
	go func() { done <- c.RoundTrip(context.Background(), req, resp) }()

	fh, err := ReadFrameFrom(br, 0) // HEADERS for stream 1
	require.NoError(t, err)
	ReleaseFrameHeader(fh)

	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetLastStreamID(0)
	ga.SetCode(NoError)
	writeFrame(t, bw, 0, ga)

	err = <-done
	require.Error(t, err)
	assert.Equal(t, RefusedStreamError, err.(*Error).Code)
}

func TestPingIsAckedWithSamePayload(t *testing.T) {
	c, br, bw, peer := dialPair(t)
	defer peer.Close()
	_ = c

	ping := AcquireFrame(FramePing).(*Ping)
	ping.SetData([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	writeFrame(t, bw, 0, ping)

	fh, err := ReadFrameFrom(br, 0)
	require.NoError(t, err)
	defer ReleaseFrameHeader(fh)

	reply := fh.Body().(*Ping)
	assert.True(t, reply.Ack())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, reply.Data())
}
