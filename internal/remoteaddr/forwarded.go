package remoteaddr

import (
	"net"
	"strings"
)

// FirstPublic returns the canonical form of the first public address in a
// comma-separated proxy header such as X-Forwarded-For, or "" if there is none.
func FirstPublic(header string) string {
	for part := range strings.SplitSeq(header, ",") {
		ip := Normalize(hostOf(strings.TrimSpace(part)))
		if ip == Unknown || IsPrivate(ip) {
			continue
		}
		return ip
	}
	return ""
}

// hostOf strips brackets and an optional port from a single header entry.
func hostOf(s string) string {
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end == -1 {
			return ""
		}
		return s[1:end]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}
