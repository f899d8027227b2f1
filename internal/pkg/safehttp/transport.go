// Package safehttp builds outbound transports that refuse private destinations.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrPrivateAddress is wrapped by dial errors for rejected destinations.
var ErrPrivateAddress = fmt.Errorf("access to private address denied")

// NewTransport returns a transport that rejects connections to private,
// loopback or link-local IP ranges to reduce SSRF risk.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialPublic,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
}

func dialPublic(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
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

	if IsPrivate(ip) {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, ip)
	}

	return conn, nil
}

// IsPrivate reports whether ip is loopback, private or link-local.
func IsPrivate(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
