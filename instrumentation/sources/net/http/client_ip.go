package http

import (
	"net/http"
	"os"
	"strings"

	"github.com/Charnelx/thread-local/internal/remoteaddr"
)

// clientAddress returns the address seeded as remote_address.
//
// Proxy headers are trusted by default: the first public address in
// X-Forwarded-For (or the header named by THREADLOCAL_CLIENT_IP_HEADER) wins
// over the socket address. Set THREADLOCAL_TRUST_PROXY=false to always use the
// socket address.
func clientAddress(r *http.Request) string {
	socket := remoteaddr.Normalize(r.RemoteAddr)
	if !trustProxy() {
		return socket
	}

	if ip := remoteaddr.FirstPublic(r.Header.Get(clientIPHeader())); ip != "" {
		return ip
	}
	return socket
}

func trustProxy() bool {
	switch strings.ToLower(os.Getenv("THREADLOCAL_TRUST_PROXY")) {
	case "false", "0", "no", "n", "off":
		return false
	default:
		return true
	}
}

func clientIPHeader() string {
	if name := os.Getenv("THREADLOCAL_CLIENT_IP_HEADER"); name != "" {
		return name
	}
	return "X-Forwarded-For"
}
