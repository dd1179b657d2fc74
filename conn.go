package http2

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rfc7540/h2core/h2utils"
	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

// DefaultPingInterval is used whenever ConnOpts.PingInterval is zero.
const DefaultPingInterval = 30 * time.Second

var clientPreface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// ConnOpts configures a Conn at dial time (spec §6 Configuration table).
type ConnOpts struct {
	// LocalSettings overrides the default local SETTINGS sent during
	// the handshake; nil uses RFC 7540 defaults throughout.
	LocalSettings *Settings
	// Scheme sets the :scheme pseudo-header on submitted requests that
	// don't already carry a URI scheme.
	Scheme string
	// Reconnect is informational only; the core never reconnects
	// itself (spec §1 Non-goals), a supervising layer reads this hint.
	Reconnect bool
	// PingInterval is how often the connection sends a PING to the peer.
	PingInterval time.Duration
	// ConcurrencyCeiling bounds the credit pool used when the peer
	// never advertises SETTINGS_MAX_CONCURRENT_STREAMS (SPEC_FULL.md
	// Open Question 3). Zero uses DefaultMaxConcurrentStreamsCeiling.
	ConcurrencyCeiling uint32
	// Logger receives structured protocol-level events. The zero value
	// (zerolog.Nop()) discards everything.
	Logger *zerolog.Logger
	// OnDisconnect fires once, from the connection's own goroutine,
	// after the transport has been torn down.
	OnDisconnect func(*Conn)
}

// Conn is a single HTTP/2 client connection: the actor described by
// spec §5 realized as one goroutine (run) that owns every mutable
// field below, fed by a socket-reading goroutine and by RoundTrip
// callers through buffered channels. Nothing here is guarded by a
// mutex; serialization is by construction.
type Conn struct {
	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	enc *HPACK // encodes our outbound header blocks
	dec *HPACK // decodes the peer's inbound header blocks

	nextID uint32 // next client-initiated (odd) stream id to allocate

	local Settings // our advertised settings
	peer  Settings // the peer's advertised settings

	fc        *flowControl
	streams   *streamRegistry
	admission *admissionQueue

	// continuation* track the single connection-wide header-block
	// assembly in progress, spec §4.D / §3.
	continuationStreamID uint32 // 0 when no assembly is open
	continuationTarget   *Stream
	continuationIsPush   bool
	continuationParent   uint32
	continuationEndData  bool // HEADERS' END_STREAM, applied once assembly closes

	draining      bool
	goAwayLastID  uint32
	maxPushIDSeen uint32

	unacks int

	opts ConnOpts
	log  zerolog.Logger

	events chan Event

	frames    chan *FrameHeader
	submitCh  chan *pendingRequest
	cancelCh  chan *pendingRequest
	readErrCh chan error

	ctx    context.Context
	cancel context.CancelFunc

	closed uint32 // atomic
}

// Dialer opens HTTP/2 client connections to a single address.
type Dialer struct {
	// Addr is the server's address, "host:port".
	Addr string
	// TLSConfig is the TLS configuration used for the handshake. If
	// nil, a default config requesting ALPN "h2" is built.
	TLSConfig *tls.Config
}

func (d *Dialer) tlsConfig() *tls.Config {
	if d.TLSConfig == nil {
		host, _, err := net.SplitHostPort(d.Addr)
		if err != nil {
			host = d.Addr
		}
		return &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host, NextProtos: []string{"h2"}}
	}
	cfg := d.TLSConfig.Clone()
	hasH2 := false
	for _, p := range cfg.NextProtos {
		if p == "h2" {
			hasH2 = true
			break
		}
	}
	if !hasH2 {
		cfg.NextProtos = append(cfg.NextProtos, "h2")
	}
	return cfg
}

// Dial establishes the TCP+TLS transport, negotiates ALPN "h2", and
// performs the HTTP/2 handshake (preface, SETTINGS, and the mandatory
// first-frame-is-SETTINGS check of spec §4.E), returning a running
// Conn. ctx bounds the dial and handshake only; it is not consulted
// again once Dial returns.
func (d *Dialer) Dial(ctx context.Context, opts ConnOpts) (*Conn, error) {
	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Client(raw, d.tlsConfig())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if tlsConn.ConnectionState().NegotiatedProtocol != "h2" {
		_ = tlsConn.Close()
		return nil, ErrServerSupport
	}

	conn := newConn(tlsConn, opts)
	if err := conn.handshake(); err != nil {
		_ = tlsConn.Close()
		return nil, err
	}

	go conn.readLoop()
	go conn.run()

	return conn, nil
}

func newConn(c net.Conn, opts ConnOpts) *Conn {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	conn := &Conn{
		c:         c,
		br:        bufio.NewReaderSize(c, 4096),
		bw:        bufio.NewWriterSize(c, DefaultMaxFrameSize),
		enc:       AcquireHPACK(),
		dec:       AcquireHPACK(),
		nextID:    1,
		streams:   newStreamRegistry(),
		admission: newAdmissionQueue(),
		opts:      opts,
		log:       log,
		events:    make(chan Event, 64),
		frames:    make(chan *FrameHeader, 64),
		submitCh:  make(chan *pendingRequest),
		cancelCh:  make(chan *pendingRequest, 8),
		readErrCh: make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	if opts.LocalSettings != nil {
		opts.LocalSettings.CopyTo(&conn.local)
	}
	conn.fc = newFlowControl(conn.peer.InitialWindowSize(), conn.local.InitialWindowSize())

	return conn
}

// Events returns the channel upward events (spec §6) are delivered on,
// in arrival order. Delivery is best-effort: if the channel's buffer
// is full the event is dropped and logged, so a caller that never
// reads Events can still use RoundTrip exclusively.
func (c *Conn) Events() <-chan Event { return c.events }

func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Str("event", ev.Kind.String()).Msg("event channel full, dropping")
	}
}

// handshake sends the client preface and local SETTINGS, then
// synchronously reads the peer's first frame, which MUST be SETTINGS
// (spec §4.E). It runs before the read/actor goroutines start, so no
// channel plumbing is needed for this one blocking exchange.
func (c *Conn) handshake() error {
	if _, err := c.bw.Write(clientPreface); err != nil {
		return err
	}

	fh := AcquireFrameHeader()
	localCopy := &Settings{}
	c.local.CopyTo(localCopy)
	fh.SetStream(0)
	fh.SetBody(localCopy)
	if _, err := fh.WriteTo(c.bw); err != nil {
		ReleaseFrameHeader(fh)
		return err
	}
	ReleaseFrameHeader(fh)
	if err := c.bw.Flush(); err != nil {
		return err
	}

	first, err := ReadFrameFrom(c.br, c.local.MaxFrameSize())
	if err != nil {
		return err
	}
	defer ReleaseFrameHeader(first)

	if first.Type() != FrameSettings || first.Stream() != 0 {
		return NewError(ProtocolError, "first frame from peer was not SETTINGS")
	}

	st := first.Body().(*Settings)
	if st.Ack() {
		return NewError(ProtocolError, "peer's first SETTINGS frame was an ACK")
	}
	if err := c.applyPeerSettings(st); err != nil {
		return err
	}
	if err := c.sendSettingsAck(); err != nil {
		return err
	}

	// A peer's handshake SETTINGS is often the only one it ever sends;
	// admission credit must come from it directly rather than waiting
	// on handleSettings, or RoundTrip queues forever.
	limit := c.admissionLimit()
	c.admission.reconcile(limit - c.streams.countOpen())
	return nil
}

func (c *Conn) applyPeerSettings(st *Settings) error {
	oldInitial := c.peer.InitialWindowSize()
	st.CopyTo(&c.peer)
	c.enc.UpdateMaxSize(c.peer.HeaderTableSize())
	if newInitial := c.peer.InitialWindowSize(); newInitial != oldInitial {
		if err := onSettingsInitialWindowChange(c.streams, oldInitial, newInitial); err != nil {
			return err
		}
	}
	return nil
}

// admissionLimit is the peer's SETTINGS_MAX_CONCURRENT_STREAMS or, when
// the peer has not advertised one, opts.ConcurrencyCeiling (with
// DefaultMaxConcurrentStreamsCeiling standing in for a zero ceiling).
func (c *Conn) admissionLimit() int {
	if !c.peer.HasMaxConcurrentStreams() && c.opts.ConcurrencyCeiling != 0 {
		return int(c.opts.ConcurrencyCeiling)
	}
	return int(c.peer.MaxConcurrentStreams())
}

func (c *Conn) sendSettingsAck() error {
	fh := AcquireFrameHeader()
	defer ReleaseFrameHeader(fh)
	ack := AcquireFrame(FrameSettings).(*Settings)
	ack.SetAck(true)
	fh.SetBody(ack)
	if _, err := fh.WriteTo(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

// writeFrame synchronously serializes and flushes body as a single
// frame on stream id. Only the actor goroutine (run) calls this.
func (c *Conn) writeFrame(streamID uint32, body Frame) error {
	fh := AcquireFrameHeader()
	defer ReleaseFrameHeader(fh)
	fh.SetStream(streamID)
	fh.SetBody(body)
	if _, err := fh.WriteTo(c.bw); err != nil {
		return &WriteError{Err: err}
	}
	return c.bw.Flush()
}

// readLoop owns the only blocking socket read; it never touches Conn's
// actor-owned state directly, only ever forwarding parsed frames (or
// the terminal read error) over channels.
func (c *Conn) readLoop() {
	for {
		fh, err := ReadFrameFrom(c.br, c.local.MaxFrameSize())
		if err != nil {
			c.readErrCh <- err
			close(c.frames)
			return
		}
		if fh.Body() == nil {
			// spec §3: frame type outside the RFC 7540 baseline, discard.
			ReleaseFrameHeader(fh)
			continue
		}
		c.frames <- fh
	}
}

// run is the single actor goroutine: every mutation of streams,
// admission, HPACK, and flow-control state happens here (spec §5).
func (c *Conn) run() {
	defer c.teardown(nil)

	interval := c.opts.PingInterval
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case fh, ok := <-c.frames:
			if !ok {
				return
			}
			err := c.dispatch(fh)
			ReleaseFrameHeader(fh)
			if err != nil {
				c.teardown(err)
				return
			}

		case p := <-c.submitCh:
			c.admission.submit(p)
			c.dispatchPending()

		case p := <-c.cancelCh:
			c.handleCancel(p)

		case <-ticker.C:
			if err := c.sendPing(); err != nil {
				c.teardown(err)
				return
			}

		case err := <-c.readErrCh:
			c.teardown(err)
			return

		case <-c.ctx.Done():
			_ = c.writeFrame(0, c.buildGoAway(NoError, nil))
			c.teardown(nil)
			return
		}
	}
}

func (c *Conn) buildGoAway(code ErrorCode, data []byte) *GoAway {
	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetLastStreamID(c.maxPushIDSeen)
	ga.SetCode(code)
	if data != nil {
		ga.SetData(data)
	}
	return ga
}

func (c *Conn) sendPing() error {
	ping := AcquireFrame(FramePing).(*Ping)
	var payload [8]byte
	binaryPutUint64(payload[:], uint64(time.Now().UnixNano()))
	ping.SetData(payload[:])
	c.unacks++
	return c.writeFrame(0, ping)
}

func binaryPutUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

// dispatch routes one inbound frame per spec §4.E.
func (c *Conn) dispatch(fh *FrameHeader) error {
	if c.continuationStreamID != 0 && fh.Type() != FrameContinuation {
		return NewError(ProtocolError, "frame interleaved inside an open header block")
	}

	switch fh.Type() {
	case FrameSettings:
		return c.handleSettings(fh)
	case FramePing:
		return c.handlePing(fh)
	case FrameGoAway:
		return c.handleGoAway(fh)
	case FrameWindowUpdate:
		return c.handleWindowUpdate(fh)
	case FrameData:
		return c.handleData(fh)
	case FrameHeaders:
		return c.handleHeaders(fh)
	case FrameContinuation:
		return c.handleContinuation(fh)
	case FramePushPromise:
		return c.handlePushPromise(fh)
	case FrameRstStream:
		return c.handleRstStream(fh)
	case FramePriority:
		return nil // advisory, discarded per priority.go's doc comment
	default:
		return nil
	}
}

func (c *Conn) handleSettings(fh *FrameHeader) error {
	st := fh.Body().(*Settings)
	if fh.Stream() != 0 {
		return NewError(ProtocolError, "SETTINGS frame with non-zero stream id")
	}
	if st.Ack() {
		return nil
	}

	if err := c.applyPeerSettings(st); err != nil {
		return err
	}
	if err := c.sendSettingsAck(); err != nil {
		return err
	}

	limit := c.admissionLimit()
	c.admission.reconcile(limit - c.streams.countOpen())
	c.dispatchPending()
	return nil
}

func (c *Conn) handlePing(fh *FrameHeader) error {
	p := fh.Body().(*Ping)
	var data [8]byte
	copy(data[:], p.Data())

	if p.Ack() {
		c.unacks--
		c.emit(Event{Kind: EventPong, PingData: data})
		return nil
	}

	c.emit(Event{Kind: EventPing, PingData: data})

	reply := AcquireFrame(FramePing).(*Ping)
	reply.SetData(data[:])
	reply.SetAck(true)
	return c.writeFrame(0, reply)
}

func (c *Conn) handleGoAway(fh *FrameHeader) error {
	ga := fh.Body().(*GoAway)
	c.log.Warn().Uint32("last_stream_id", ga.LastStreamID()).Stringer("code", ga.Code()).Msg("received GOAWAY")

	c.draining = true
	c.goAwayLastID = ga.LastStreamID()

	var toClose []*Stream
	c.streams.Range(func(s *Stream) bool {
		if s.id > c.goAwayLastID {
			toClose = append(toClose, s)
		}
		return true
	})
	for _, s := range toClose {
		c.completeStream(s, NewStreamError(s.id, RefusedStreamError, "connection is going away, retry on a new connection"))
	}

	c.checkDraining()
	return nil
}

func (c *Conn) checkDraining() {
	if c.draining && c.streams.Len() == 0 {
		c.cancel()
	}
}

func (c *Conn) handleWindowUpdate(fh *FrameHeader) error {
	wu := fh.Body().(*WindowUpdate)

	if fh.Stream() == 0 {
		if err := c.fc.onWindowUpdate(wu.Increment()); err != nil {
			return err
		}
		c.streams.Range(func(s *Stream) bool {
			c.tryFlushStream(s)
			return true
		})
		return nil
	}

	s, ok := c.streams.Get(fh.Stream())
	if !ok {
		return nil // stream already closed, ignore per RFC leniency
	}
	next := s.sendWindow + int64(wu.Increment())
	if next > maxWindowSize {
		c.resetStream(s, FlowControlError, "WINDOW_UPDATE overflowed stream send window")
		return nil
	}
	s.sendWindow = next
	c.tryFlushStream(s)
	return nil
}

func (c *Conn) handleData(fh *FrameHeader) error {
	if fh.Stream() == 0 {
		return NewError(ProtocolError, "DATA frame with stream id 0")
	}
	data := fh.Body().(*Data)

	if replenish, send := c.fc.onDataReceived(int64(fh.Len())); send {
		wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
		wu.SetIncrement(replenish)
		if err := c.writeFrame(0, wu); err != nil {
			return err
		}
	}

	s, ok := c.streams.Get(fh.Stream())
	if !ok {
		return nil
	}
	if !s.canAcceptFrames() {
		c.resetStream(s, StreamClosedError, "DATA received on a closed stream")
		return nil
	}

	if replenish, send := windowReplenish(&s.recvWindow, c.local.InitialWindowSize(), int64(fh.Len())); send {
		wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
		wu.SetIncrement(replenish)
		if err := c.writeFrame(s.id, wu); err != nil {
			return err
		}
	}

	if body := data.Data(); len(body) > 0 {
		if s.body == nil {
			s.body = bytebufferpool.Get()
		}
		_, _ = s.body.Write(body)
	}

	if data.EndStream() {
		if err := s.recvEndStream(); err != nil {
			c.resetStream(s, err.(*Error).Code, err.Error())
			return nil
		}
		if s.isClosed() {
			c.completeStream(s, nil)
		}
	}

	return nil
}

func (c *Conn) handleHeaders(fh *FrameHeader) error {
	s, ok := c.streams.Get(fh.Stream())
	if !ok {
		return NewError(ProtocolError, "HEADERS received for an unknown stream")
	}

	h := fh.Body().(*Headers)
	s.headerBuf = append(s.headerBuf[:0], h.HeaderBlock()...)

	if h.EndHeaders() {
		return c.finishHeaderBlock(s, false, 0, h.EndStream())
	}

	c.continuationStreamID = fh.Stream()
	c.continuationTarget = s
	c.continuationIsPush = false
	c.continuationParent = 0
	c.continuationEndData = h.EndStream()
	return nil
}

func (c *Conn) handlePushPromise(fh *FrameHeader) error {
	if !c.local.EnablePush() {
		return NewError(ProtocolError, "PUSH_PROMISE received after disabling push")
	}
	if _, ok := c.streams.Get(fh.Stream()); !ok {
		return NewError(ProtocolError, "PUSH_PROMISE referenced an unknown parent stream")
	}

	pp := fh.Body().(*PushPromise)
	promised := newStream(pp.PromisedStreamID(), c.peer.InitialWindowSize(), c.local.InitialWindowSize())
	if err := promised.reserveRemote(); err != nil {
		return err
	}
	c.streams.Insert(promised)
	if pp.PromisedStreamID() > c.maxPushIDSeen {
		c.maxPushIDSeen = pp.PromisedStreamID()
	}

	promised.headerBuf = append(promised.headerBuf[:0], pp.HeaderBlock()...)

	if pp.EndHeaders() {
		return c.finishHeaderBlock(promised, true, fh.Stream(), false)
	}

	c.continuationStreamID = fh.Stream()
	c.continuationTarget = promised
	c.continuationIsPush = true
	c.continuationParent = fh.Stream()
	c.continuationEndData = false
	return nil
}

func (c *Conn) handleContinuation(fh *FrameHeader) error {
	if c.continuationStreamID == 0 || fh.Stream() != c.continuationStreamID {
		return NewError(ProtocolError, "stray CONTINUATION frame")
	}

	cont := fh.Body().(*Continuation)
	target := c.continuationTarget
	target.headerBuf = append(target.headerBuf, cont.HeaderBlock()...)

	if !cont.EndHeaders() {
		return nil
	}

	isPush, parent, endStream := c.continuationIsPush, c.continuationParent, c.continuationEndData
	c.continuationStreamID = 0
	c.continuationTarget = nil

	return c.finishHeaderBlock(target, isPush, parent, endStream)
}

func (c *Conn) handleRstStream(fh *FrameHeader) error {
	r := fh.Body().(*RstStream)
	s, ok := c.streams.Get(fh.Stream())
	if !ok {
		return nil
	}
	s.reset()
	c.completeStream(s, NewStreamError(s.id, r.Code(), "stream reset by peer"))
	return nil
}

// finishHeaderBlock decodes a complete HPACK block and either starts a
// push's synthetic request (isPush) or applies response headers, then
// advances the stream's state machine.
func (c *Conn) finishHeaderBlock(s *Stream, isPush bool, parentID uint32, endStream bool) error {
	fields, err := c.dec.Decode(s.headerBuf, c.local.MaxHeaderListSize())
	s.headerBuf = s.headerBuf[:0]
	if err != nil {
		return NewError(CompressionError, err.Error())
	}
	defer func() {
		for _, hf := range fields {
			ReleaseHeaderField(hf)
		}
	}()

	if isPush {
		req := &fasthttp.Request{}
		for _, hf := range fields {
			applyPushRequestField(req, hf)
		}
		s.resp = &fasthttp.Response{}
		c.emit(Event{Kind: EventPushPromise, Push: &PushDescriptor{
			ParentStreamID:   parentID,
			PromisedStreamID: s.id,
			Request:          req,
		}})
		return nil
	}

	if s.resp != nil {
		for _, hf := range fields {
			if err := applyResponseField(s.resp, hf); err != nil {
				return NewStreamError(s.id, ProtocolError, err.Error())
			}
		}
	}

	if err := s.recvHeaders(endStream); err != nil {
		return err
	}
	if s.isClosed() {
		c.completeStream(s, nil)
	}
	return nil
}

func applyResponseField(resp *fasthttp.Response, hf *HeaderField) error {
	if hf.IsPseudo() {
		if hf.KeyBytes()[1] == 's' { // :status
			n, err := strconv.Atoi(hf.Value())
			if err != nil {
				return err
			}
			resp.SetStatusCode(n)
		}
		return nil
	}
	if h2utils.EqualFold(hf.KeyBytes(), StringContentLength) {
		n, _ := strconv.Atoi(hf.Value())
		resp.Header.SetContentLength(n)
		return nil
	}
	resp.Header.AddBytesKV(hf.KeyBytes(), hf.ValueBytes())
	return nil
}

func applyPushRequestField(req *fasthttp.Request, hf *HeaderField) {
	if hf.IsPseudo() {
		switch hf.Key() {
		case ":method":
			req.Header.SetMethodBytes(hf.ValueBytes())
		case ":path":
			req.SetRequestURIBytes(hf.ValueBytes())
		case ":scheme":
			req.URI().SetSchemeBytes(hf.ValueBytes())
		case ":authority":
			req.Header.SetHostBytes(hf.ValueBytes())
		}
		return
	}
	req.Header.AddBytesKV(hf.KeyBytes(), hf.ValueBytes())
}

// resetStream sends RST_STREAM and completes s locally with err; used
// for stream-scoped violations that must not take down the connection.
func (c *Conn) resetStream(s *Stream, code ErrorCode, msg string) {
	r := AcquireFrame(FrameRstStream).(*RstStream)
	r.SetCode(code)
	_ = c.writeFrame(s.id, r)
	s.reset()
	c.completeStream(s, NewStreamError(s.id, code, msg))
}

// completeStream removes s from the registry, delivers its terminal
// response (or push event), credits the admission queue, and tries to
// admit any queued request the freed slot now permits.
func (c *Conn) completeStream(s *Stream, err error) {
	c.streams.Delete(s.id)

	if s.body != nil {
		if err == nil && s.resp != nil {
			s.resp.AppendBody(s.body.B)
		}
		bytebufferpool.Put(s.body)
		s.body = nil
	}

	c.emit(Event{Kind: EventStreamCompleted, StreamID: s.id, Response: s.resp, Err: err})

	if !s.isPush {
		if s.done != nil {
			s.done <- err
		}
		c.admission.grant(1)
	}

	c.dispatchPending()
	c.checkDraining()
}

// dispatchPending drains as many admitted requests as credits allow.
func (c *Conn) dispatchPending() {
	if c.draining {
		return
	}
	for {
		p, ok := c.admission.next()
		if !ok {
			return
		}
		if err := c.openStream(p); err != nil {
			p.done <- err
		}
	}
}

func (c *Conn) handleCancel(p *pendingRequest) {
	if c.admission.cancel(p) {
		p.done <- context.Canceled
		return
	}
	if p.streamID == 0 {
		return // already completed, or race with completion; nothing to do
	}
	s, ok := c.streams.Get(p.streamID)
	if !ok {
		return
	}
	r := AcquireFrame(FrameRstStream).(*RstStream)
	r.SetCode(CancelError)
	_ = c.writeFrame(s.id, r)
	s.reset()
	c.streams.Delete(s.id)
	if s.body != nil {
		bytebufferpool.Put(s.body)
		s.body = nil
	}
	c.admission.grant(1)
	p.done <- context.Canceled
	c.dispatchPending()
}

func (c *Conn) openStream(p *pendingRequest) error {
	if c.nextID > (1<<31-1)-2 {
		return ErrNoAvailableIDs
	}
	id := c.nextID
	c.nextID += 2

	body := p.req.Body()
	s := newStream(id, c.peer.InitialWindowSize(), c.local.InitialWindowSize())
	if err := s.openLocal(len(body) == 0); err != nil {
		return err
	}
	s.resp = p.resp
	s.done = p.done
	p.streamID = id
	c.streams.Insert(s)

	if err := c.writeRequestHeaders(s, p.req, len(body) == 0); err != nil {
		return err
	}
	if len(body) != 0 {
		s.pendingBody = body
		s.pendingEndStream = true
		c.tryFlushStream(s)
	}
	return nil
}

func (c *Conn) writeRequestHeaders(s *Stream, req *fasthttp.Request, endStream bool) error {
	h := AcquireFrame(FrameHeaders).(*Headers)
	hf := AcquireHeaderField()

	hf.SetBytes(StringAuthority, req.URI().Host())
	h.AppendHeaderField(c.enc, hf, true)

	method := req.Header.Method()
	hf.SetBytes(StringMethod, method)
	h.AppendHeaderField(c.enc, hf, true)

	hf.SetBytes(StringPath, req.URI().RequestURI())
	h.AppendHeaderField(c.enc, hf, true)

	scheme := req.URI().Scheme()
	if len(scheme) == 0 && c.opts.Scheme != "" {
		scheme = []byte(c.opts.Scheme)
	}
	hf.SetBytes(StringScheme, scheme)
	h.AppendHeaderField(c.enc, hf, true)

	hf.SetBytes(StringUserAgent, req.Header.UserAgent())
	h.AppendHeaderField(c.enc, hf, true)

	req.Header.VisitAll(func(k, v []byte) {
		if h2utils.EqualFold(k, StringUserAgent) {
			return
		}
		hf.SetBytes(ToLower(append([]byte(nil), k...)), v)
		h.AppendHeaderField(c.enc, hf, false)
	})

	ReleaseHeaderField(hf)

	h.SetEndStream(endStream)
	h.SetEndHeaders(true)

	return c.writeFrame(s.id, h)
}

// tryFlushStream sends as much of s.pendingBody as the connection and
// stream send windows currently allow, splitting on peer.MaxFrameSize
// (spec §4.A/§4.C). Any remainder stays buffered for the next
// WINDOW_UPDATE.
func (c *Conn) tryFlushStream(s *Stream) {
	for len(s.pendingBody) > 0 {
		maxFrame := int64(c.peer.MaxFrameSize())
		n := int64(len(s.pendingBody))
		if n > maxFrame {
			n = maxFrame
		}
		if n > s.sendWindow {
			n = s.sendWindow
		}
		if n > c.fc.sendWindow {
			n = c.fc.sendWindow
		}
		if n <= 0 {
			return
		}

		chunk := s.pendingBody[:n]
		last := n == int64(len(s.pendingBody))

		d := AcquireFrame(FrameData).(*Data)
		d.SetData(chunk)
		d.SetEndStream(last && s.pendingEndStream)

		if err := c.writeFrame(s.id, d); err != nil {
			c.teardown(err)
			return
		}

		s.sendWindow -= n
		c.fc.debitSend(n)
		s.pendingBody = s.pendingBody[n:]

		if last && s.pendingEndStream {
			s.pendingEndStream = false
			if err := s.closeLocal(); err == nil && s.isClosed() {
				c.completeStream(s, nil)
			}
			return
		}
	}
}

// teardown runs exactly once (via run()'s defer, or explicitly before
// an early return) to fail every outstanding request and stream and
// close the transport (spec §7: "client is notified once").
func (c *Conn) teardown(err error) {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return
	}

	if err == nil {
		err = ErrConnClosed
	}

	c.admission.drainInto(err)
	c.streams.Range(func(s *Stream) bool {
		if s.body != nil {
			bytebufferpool.Put(s.body)
			s.body = nil
		}
		if !s.isPush && s.done != nil {
			s.done <- err
		}
		return true
	})

	_ = c.c.Close()
	c.emit(Event{Kind: EventConnectionClosed, Err: err})
	close(c.events)

	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect(c)
	}
}

// Close requests a graceful shutdown: GOAWAY with NO_ERROR, then
// transport close, performed by the actor goroutine.
func (c *Conn) Close() error {
	c.cancel()
	return nil
}

// Closed reports whether the connection has finished tearing down.
func (c *Conn) Closed() bool { return atomic.LoadUint32(&c.closed) == 1 }

// RoundTrip sends req and blocks until resp is fully populated, ctx is
// canceled, or the connection closes. It is safe to call concurrently
// from many goroutines sharing one Conn (spec §5: the admission queue
// is the only synchronization point).
func (c *Conn) RoundTrip(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if c.Closed() {
		return ErrConnClosed
	}

	p := &pendingRequest{ctx: ctx, req: req, resp: resp, done: make(chan error, 1)}

	select {
	case c.submitCh <- p:
	case <-c.ctx.Done():
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		select {
		case c.cancelCh <- p:
		default:
		}
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrConnClosed
	}
}

