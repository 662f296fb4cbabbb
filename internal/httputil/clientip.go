package httputil

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP resolves the originating client address for logging and
// span attributes. Proxy headers win over the socket address: the first
// parseable entry of X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func GetClientIP(r *http.Request) string {
	for _, entry := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		candidate := strings.TrimSpace(entry)
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
