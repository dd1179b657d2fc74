package http2

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/valyala/fasthttp"
)

// ClientOpts configures the HTTP/2 transport ConfigureClient installs on
// a fasthttp.HostClient.
type ClientOpts struct {
	// OnRTT, if set, is called after every PING/PONG round trip with the
	// measured latency.
	OnRTT func(time.Duration)
	// PingInterval overrides DefaultPingInterval for the underlying Conn.
	PingInterval time.Duration
}

func configureDialer(d *Dialer) *Dialer {
	if d.TLSConfig == nil {
		d.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		}
	}

	tlsConfig := d.TLSConfig

	if len(tlsConfig.ServerName) == 0 {
		host, _, err := net.SplitHostPort(d.Addr)
		if err != nil {
			host = d.Addr
		}
		tlsConfig.ServerName = host
	}

	hasH2 := false
	for _, p := range tlsConfig.NextProtos {
		if p == "h2" {
			hasH2 = true
			break
		}
	}
	if !hasH2 {
		tlsConfig.NextProtos = append(tlsConfig.NextProtos, "h2")
	}

	return d
}

// ConfigureClient points c.Transport at a single HTTP/2 Conn dialed to
// c.Addr, so every RoundTrip-equivalent call through the HostClient goes
// out as an HTTP/2 stream on that connection rather than opening a new
// HTTP/1.1 socket per request. It fails with ErrServerSupport if the
// peer doesn't negotiate ALPN "h2".
func ConfigureClient(c *fasthttp.HostClient, opts ClientOpts) error {
	d := configureDialer(&Dialer{Addr: c.Addr, TLSConfig: c.TLSConfig})

	connOpts := ConnOpts{PingInterval: opts.PingInterval}

	conn, err := d.Dial(context.Background(), connOpts)
	if err != nil {
		return err
	}

	c.IsTLS = true
	c.TLSConfig = d.TLSConfig
	c.Transport = func(req *fasthttp.Request, resp *fasthttp.Response) error {
		return conn.RoundTrip(context.Background(), req, resp)
	}

	if opts.OnRTT != nil {
		go func() {
			for ev := range conn.Events() {
				switch ev.Kind {
				case EventPong:
					// sendPing puts its send time (Unix nanoseconds,
					// big-endian) in the payload the peer echoes back.
					var sent int64
					for _, b := range ev.PingData {
						sent = sent<<8 | int64(b)
					}
					opts.OnRTT(time.Since(time.Unix(0, sent)))
				case EventConnectionClosed:
					return
				}
			}
		}()
	}

	return nil
}

var ErrNotAvailableStreams = errors.New("http2: ran out of available stream ids")
