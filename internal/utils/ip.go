package utils

import (
	"math"
	"net"
	"net/netip"
	"strings"
)

// ParsePrefix accepts a CIDR block or a single address. A single address is
// returned as a host prefix (/32 or /128). IPv4-mapped IPv6 input is unmapped.
func ParsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		if p.Addr().Is4In6() && p.Bits() >= 96 {
			p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
		}
		return p.Masked(), nil
	}
	addr, err := ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return HostPrefix(addr), nil
}

// ParseAddr parses a concrete address, dropping any IPv6 zone and unmapping IPv4-in-IPv6.
func ParseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.WithZone("").Unmap(), nil
}

// HostPrefix returns the single-address prefix for addr.
func HostPrefix(addr netip.Addr) netip.Prefix {
	return netip.PrefixFrom(addr, addr.BitLen())
}

// PrefixSize returns the number of addresses in p, saturating at math.MaxUint64.
func PrefixSize(p netip.Prefix) uint64 {
	hostBits := p.Addr().BitLen() - p.Bits()
	if hostBits >= 64 {
		return math.MaxUint64
	}
	return 1 << hostBits
}

// IPNet converts p into the net package representation.
func IPNet(p netip.Prefix) net.IPNet {
	return net.IPNet{
		IP:   net.IP(p.Addr().AsSlice()),
		Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
	}
}

// Hosts calls fn for every address in p, in order, until fn returns false.
func Hosts(p netip.Prefix, fn func(netip.Addr) bool) {
	p = p.Masked()
	for addr := p.Addr(); addr.IsValid() && p.Contains(addr); addr = addr.Next() {
		if !fn(addr) {
			return
		}
	}
}

// FormatPrefix renders host prefixes as plain addresses.
func FormatPrefix(p netip.Prefix) string {
	if p.IsSingleIP() {
		return p.Addr().String()
	}
	return p.String()
}
