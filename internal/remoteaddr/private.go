package remoteaddr

import (
	"sync"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

var (
	privateV4   *ipaddr.IPv4AddressTrie
	privateV6   *ipaddr.IPv6AddressTrie
	privateOnce sync.Once
)

var privateRanges = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",

	"::/128",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"100::/64",
	"2001:db8::/32",
	"::ffff:0:0/96",
}

func initPrivateRanges() {
	privateOnce.Do(func() {
		privateV4 = &ipaddr.IPv4AddressTrie{}
		privateV6 = &ipaddr.IPv6AddressTrie{}
		for _, cidr := range privateRanges {
			block := ipaddr.NewIPAddressString(cidr).GetAddress()
			if block.IsIPv4() {
				privateV4.Add(block.ToIPv4())
			} else if block.IsIPv6() {
				privateV6.Add(block.ToIPv6())
			}
		}
	})
}

// IsPrivate reports whether ip is a loopback, private-use, link-local,
// documentation or otherwise non-routable address. Unparsable input is not private.
func IsPrivate(ip string) bool {
	if ip == "" {
		return false
	}
	addr, err := ipaddr.NewIPAddressString(ip).ToAddress()
	if err != nil || addr == nil {
		return false
	}

	initPrivateRanges()
	return (addr.IsIPv4() && privateV4.ElementContains(addr.ToIPv4())) ||
		(addr.IsIPv6() && privateV6.ElementContains(addr.ToIPv6()))
}
