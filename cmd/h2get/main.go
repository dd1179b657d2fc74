// Command h2get dials a single HTTP/2 connection and issues one GET,
// printing the response status, headers, and body. It exists to
// exercise the whole core end-to-end, the way the teacher's
// examples/client does for its own Client type.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/rfc7540/h2core"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

func main() {
	verbose := flag.Bool("v", false, "log protocol-level events to stderr")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: h2get [-v] [-timeout d] https://host/path")
		os.Exit(2)
	}

	target, err := url.Parse(flag.Arg(0))
	if err != nil {
		log.Fatalf("parse url: %s", err)
	}
	if target.Scheme != "https" {
		log.Fatalf("h2get only dials TLS, got scheme %q", target.Scheme)
	}

	addr := target.Host
	if target.Port() == "" {
		addr += ":443"
	}

	logger := zerolog.Nop()
	if *verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	dialer := &http2.Dialer{Addr: addr, TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12}}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := dialer.Dial(ctx, http2.ConnOpts{Scheme: target.Scheme, Logger: &logger})
	if err != nil {
		log.Fatalf("dial: %s", err)
	}
	defer conn.Close()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod("GET")
	req.SetRequestURI(target.String())
	req.URI().SetScheme(target.Scheme)
	req.Header.SetHost(target.Host)

	if err := conn.RoundTrip(ctx, req, resp); err != nil {
		log.Fatalf("round trip: %s", err)
	}

	fmt.Printf("HTTP/2 %d\n", resp.StatusCode())
	resp.Header.VisitAll(func(k, v []byte) {
		fmt.Printf("%s: %s\n", k, v)
	})
	fmt.Println()
	os.Stdout.Write(resp.Body())
	fmt.Println()
}
