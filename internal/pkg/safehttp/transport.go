// Package safehttp builds the outbound HTTP clients used for enrichment and forwarding.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const dialTimeout = 5 * time.Second

// SafeTransport rejects connections to private or loopback IP ranges to reduce SSRF risk.
var SafeTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	DialContext:         safeDial,
	TLSHandshakeTimeout: 5 * time.Second,
	MaxIdleConnsPerHost: 8,
	IdleConnTimeout:     90 * time.Second,
}

func safeDial(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
	}

	if Blocked(ip) {
		conn.Close()
		return nil, fmt.Errorf("access to private IP %s is denied", ip)
	}

	return conn, nil
}

// Blocked reports whether ip is loopback, private or link-local.
func Blocked(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// NewClient returns a client bounded by timeout and instrumented with OpenTelemetry.
// When blockPrivate is set, connections to internal addresses are refused.
func NewClient(timeout time.Duration, blockPrivate bool) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if blockPrivate {
		base = SafeTransport
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(base),
	}
}
