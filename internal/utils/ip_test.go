package utils

import (
	"math"
	"net/netip"
	"testing"
)

func TestParsePrefixAcceptsAddressesAndCIDRs(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "10.0.0.0/8", want: "10.0.0.0/8"},
		{in: "10.1.2.3/8", want: "10.0.0.0/8"},
		{in: "192.168.1.5", want: "192.168.1.5/32"},
		{in: " 2001:db8::1 ", want: "2001:db8::1/128"},
		{in: "::ffff:10.0.0.1", want: "10.0.0.1/32"},
		{in: "::ffff:10.0.0.0/104", want: "10.0.0.0/8"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePrefix(tt.in)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if p.String() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, p)
			}
		})
	}
}

func TestParsePrefixRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not-an-ip", "10.0.0.0/33", "300.1.1.1"} {
		if _, err := ParsePrefix(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestPrefixSizeCalculatesCorrectly(t *testing.T) {
	if size := PrefixSize(netip.MustParsePrefix("10.0.0.0/24")); size != 256 {
		t.Fatalf("expected /24 to have size 256, got %d", size)
	}
	if size := PrefixSize(netip.MustParsePrefix("2001:db8::/128")); size != 1 {
		t.Fatalf("expected /128 to have size 1, got %d", size)
	}
	if size := PrefixSize(netip.MustParsePrefix("2001:db8::/32")); size != math.MaxUint64 {
		t.Fatalf("expected /32 IPv6 to saturate, got %d", size)
	}
}

func TestHostsWalksPrefixInOrder(t *testing.T) {
	var got []string
	Hosts(netip.MustParsePrefix("192.168.1.254/31"), func(a netip.Addr) bool {
		got = append(got, a.String())
		return true
	})
	if len(got) != 2 || got[0] != "192.168.1.254" || got[1] != "192.168.1.255" {
		t.Fatalf("unexpected hosts %v", got)
	}

	count := 0
	Hosts(netip.MustParsePrefix("10.0.0.0/24"), func(netip.Addr) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Fatalf("expected walk to stop after 3 hosts, got %d", count)
	}
}

func TestIPNetRoundTripsMask(t *testing.T) {
	n := IPNet(netip.MustParsePrefix("172.16.0.0/12"))
	if n.String() != "172.16.0.0/12" {
		t.Fatalf("expected 172.16.0.0/12, got %s", n.String())
	}
}
