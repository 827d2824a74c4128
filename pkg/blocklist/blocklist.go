// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package blocklist classifies IP addresses and hostnames against static tables
// of reserved and sensitive destinations.
//
// The tables are parsed once at package initialisation and never change
// afterwards. Nothing in this package performs network I/O.
package blocklist

import (
	"fmt"
	"net/netip"
)

// Category is the class a destination address falls into.
type Category int

const (
	// Public is any address not covered by the reserved tables.
	Public Category = iota
	// Loopback covers 127.0.0.0/8 and ::1.
	Loopback
	// Unspecified covers 0.0.0.0/8 and ::.
	Unspecified
	// Metadata covers cloud instance-metadata endpoints.
	Metadata
	// LinkLocal covers 169.254.0.0/16 and fe80::/10.
	LinkLocal
	// Private covers RFC 1918, shared address space and unique-local IPv6.
	Private
	// Multicast covers 224.0.0.0/4 and ff00::/8.
	Multicast
	// Broadcast is 255.255.255.255.
	Broadcast
	// Reserved covers 240.0.0.0/4.
	Reserved
)

// String returns the short category name used in denial rules and metrics.
func (c Category) String() string {
	switch c {
	case Public:
		return "public"
	case Loopback:
		return "loopback"
	case Unspecified:
		return "unspecified"
	case Metadata:
		return "metadata"
	case LinkLocal:
		return "link-local"
	case Private:
		return "private"
	case Multicast:
		return "multicast"
	case Broadcast:
		return "broadcast"
	case Reserved:
		return "reserved"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Reason renders a human-readable explanation for ip being in category c.
func (c Category) Reason(ip netip.Addr) string {
	switch c {
	case Loopback:
		return fmt.Sprintf("%s is a loopback address", ip)
	case Unspecified:
		return fmt.Sprintf("%s is an unspecified address", ip)
	case Metadata:
		return fmt.Sprintf("%s is a cloud metadata endpoint", ip)
	case LinkLocal:
		return fmt.Sprintf("%s is a link-local address", ip)
	case Private:
		return fmt.Sprintf("%s is a private network address", ip)
	case Multicast:
		return fmt.Sprintf("%s is a multicast address", ip)
	case Broadcast:
		return fmt.Sprintf("%s is a broadcast address", ip)
	case Reserved:
		return fmt.Sprintf("%s is in a reserved range", ip)
	default:
		return fmt.Sprintf("%s is a public address", ip)
	}
}

// severity orders categories when an IPv6 address embeds an IPv4 one and the
// two halves disagree.
func (c Category) severity() int {
	switch c {
	case Metadata:
		return 8
	case Loopback:
		return 7
	case Unspecified:
		return 6
	case Broadcast:
		return 5
	case Reserved:
		return 4
	case Multicast:
		return 3
	case LinkLocal:
		return 2
	case Private:
		return 1
	default:
		return 0
	}
}

type reservedRange struct {
	prefix   netip.Prefix
	category Category
}

var metadataAddrs = mustAddrs(
	"169.254.169.254", // AWS, GCP, Azure, OpenStack, DigitalOcean
	"169.254.170.2",   // AWS ECS task metadata
	"fd00:ec2::254",   // AWS IMDS over IPv6
	"100.100.100.200", // Alibaba Cloud
	"192.0.0.192",     // Oracle Cloud
)

// Order matters: the first matching range wins, so narrower ranges precede the
// ranges that contain them.
var reservedRanges = mustRanges([]struct {
	cidr     string
	category Category
}{
	{"0.0.0.0/8", Unspecified},
	{"::/128", Unspecified},
	{"127.0.0.0/8", Loopback},
	{"::1/128", Loopback},
	{"169.254.0.0/16", LinkLocal},
	{"fe80::/10", LinkLocal},
	{"10.0.0.0/8", Private},
	{"172.16.0.0/12", Private},
	{"192.168.0.0/16", Private},
	{"100.64.0.0/10", Private},
	{"fc00::/7", Private},
	{"224.0.0.0/4", Multicast},
	{"ff00::/8", Multicast},
	{"255.255.255.255/32", Broadcast},
	{"240.0.0.0/4", Reserved},
	{"192.0.0.0/24", Reserved},  // IETF protocol assignments
	{"198.18.0.0/15", Reserved}, // benchmarking
})

func mustAddrs(addrs ...string) map[netip.Addr]struct{} {
	out := make(map[netip.Addr]struct{}, len(addrs))
	for _, s := range addrs {
		out[netip.MustParseAddr(s)] = struct{}{}
	}
	return out
}

func mustRanges(entries []struct {
	cidr     string
	category Category
}) []reservedRange {
	out := make([]reservedRange, 0, len(entries))
	for _, e := range entries {
		p, err := netip.ParsePrefix(e.cidr)
		if err != nil {
			panic(fmt.Sprintf("blocklist: invalid built-in CIDR %q: %v", e.cidr, err))
		}
		out = append(out, reservedRange{prefix: p, category: e.category})
	}
	return out
}

// Normalize strips any zone and unmaps IPv4-mapped IPv6 addresses so that
// every later comparison sees a single canonical form.
func Normalize(ip netip.Addr) netip.Addr {
	return ip.WithZone("").Unmap()
}

// Classify returns the category of ip. IPv4 addresses embedded in NAT64,
// IPv4-compatible, 6to4 and Teredo IPv6 addresses are classified as well and
// the most severe category is returned.
func Classify(ip netip.Addr) Category {
	if !ip.IsValid() {
		return Unspecified
	}
	ip = Normalize(ip)

	c := classifyDirect(ip)
	for _, v4 := range EmbeddedIPv4s(ip) {
		if e := classifyDirect(v4); e.severity() > c.severity() {
			c = e
		}
	}
	return c
}

func classifyDirect(ip netip.Addr) Category {
	if _, ok := metadataAddrs[ip]; ok {
		return Metadata
	}
	for _, r := range reservedRanges {
		if r.prefix.Contains(ip) {
			return r.category
		}
	}
	return Public
}

var (
	nat64Prefix  = netip.MustParsePrefix("64:ff9b::/96")
	compatPrefix = netip.MustParsePrefix("::/96")
	sixToFour    = netip.MustParsePrefix("2002::/16")
	teredoPrefix = netip.MustParsePrefix("2001::/32")
)

// EmbeddedIPv4 extracts the IPv4 address carried inside an IPv6 transition
// address. It reports false for plain IPv4 and for IPv6 addresses that do not
// embed one.
func EmbeddedIPv4(ip netip.Addr) (netip.Addr, bool) {
	ip = Normalize(ip)
	if !ip.Is6() {
		return netip.Addr{}, false
	}
	b := ip.As16()
	switch {
	case nat64Prefix.Contains(ip):
		return netip.AddrFrom4([4]byte{b[12], b[13], b[14], b[15]}), true
	case compatPrefix.Contains(ip):
		// :: and ::1 are their own categories.
		if ip == netip.IPv6Unspecified() || ip == netip.IPv6Loopback() {
			return netip.Addr{}, false
		}
		return netip.AddrFrom4([4]byte{b[12], b[13], b[14], b[15]}), true
	case sixToFour.Contains(ip):
		return netip.AddrFrom4([4]byte{b[2], b[3], b[4], b[5]}), true
	case teredoPrefix.Contains(ip):
		return netip.AddrFrom4([4]byte{b[12] ^ 0xff, b[13] ^ 0xff, b[14] ^ 0xff, b[15] ^ 0xff}), true
	}
	return netip.Addr{}, false
}

// EmbeddedIPv4s returns every IPv4 address carried inside ip: the one
// EmbeddedIPv4 reports and, for Teredo, the server address as well.
func EmbeddedIPv4s(ip netip.Addr) []netip.Addr {
	v4, ok := EmbeddedIPv4(ip)
	if !ok {
		return nil
	}
	out := []netip.Addr{v4}
	if ip = Normalize(ip); teredoPrefix.Contains(ip) {
		b := ip.As16()
		out = append(out, netip.AddrFrom4([4]byte{b[4], b[5], b[6], b[7]}))
	}
	return out
}
