package device

import (
	"context"
	"net"
	"net/url"
	"time"
)

// Reachable reports whether a TCP connection to the backend host can be
// opened within timeout. It does not touch the serial connection.
func (c *Client) Reachable(ctx context.Context, timeout time.Duration) bool {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return isPortOpen(ctx, hostPort(u), timeout)
}

func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// isPortOpen checks if a port is open on a host
func isPortOpen(ctx context.Context, address string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
