// Package clientip resolves the caller's address for rate limiting and logs.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the host part of r.RemoteAddr. Proxy headers are not
// read here; mount chi's middleware.RealIP in front when the server runs
// behind a trusted load balancer and it will have rewritten RemoteAddr.
func RealClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]")
	}
	return host
}
