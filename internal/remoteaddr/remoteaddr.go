package remoteaddr

import (
	"net"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

const Unknown = "0.0.0.0"

// Normalize strips the port from a "host:port" peer address and returns the
// canonical text form of the IP. Inputs that are not IP addresses map to Unknown.
func Normalize(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport // Address without a port.
	}
	if host == "" {
		// ipaddress-go reads an empty string as the loopback address.
		return Unknown
	}

	ipAddress, err := ipaddr.NewIPAddressString(host).ToAddress()
	if err != nil || ipAddress == nil {
		return Unknown
	}
	return ipAddress.ToCanonicalString()
}
