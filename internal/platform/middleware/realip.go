package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey resolves the client address used as the rate-governor key.
// The first X-Forwarded-For hop wins when a proxy is in front; otherwise
// the connection's remote address, stripped of its port.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
