// Package transport provides the outbound HTTP transport used for
// Admin API and checkout edge calls.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// =============================================================================
// OUTBOUND CLIENT
// =============================================================================
//
// One shared transport for everything this service sends upstream: the
// catalog fetcher's Admin API lookups and the signer's walk across the
// checkout edge origins. The checkout edges answer from CDN nodes that
// score the TLS ClientHello (JA3), and Go's stock handshake scores as a
// bot there, so the dial goes through uTLS with a Chrome hello instead.
// ALPN decides the protocol; when the edge negotiates h2 the request
// rides http2.Transport, otherwise a plain http.Transport carries it.
// =============================================================================

// NewChromeTransport returns a RoundTripper whose TLS handshake looks
// like Chrome's. The signer probes several origins per request, so a
// transport the edges throttle would turn every sign call into a crawl.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2Transport := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	h1Transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &chromeTransport{
		h2: h2Transport,
		h1: h1Transport,
	}
}

// NewClient returns an *http.Client over the Chrome transport with
// redirect following disabled. Callers classify redirects themselves;
// checkout edges answer password-protected shops with a redirect that
// must surface, not be followed.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewChromeTransport(timeout),
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip sends over h2 and retries once over h1. The h2 attempt
// fails fast for plain http:// and for hosts that never negotiated h2.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	return t.h1.RoundTrip(req)
}

// dialChromeTLS dials addr and completes a uTLS handshake with the
// Chrome hello. SNI comes from the host part of addr.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConfig := &utls.Config{
		ServerName: host,
	}
	tlsConn := utls.UClient(conn, tlsConfig, utls.HelloChrome_Auto)

	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
