// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultDNSTimeout bounds a single exchange with the nameserver.
const DefaultDNSTimeout = 2 * time.Second

// DNS resolves through one fixed nameserver instead of the system
// configuration. It asks for A records, then AAAA records, and returns the
// addresses found in the answer sections in that order.
type DNS struct {
	server string
	udp    *dns.Client
	tcp    *dns.Client
}

// NewDNS creates a resolver for server, given as "host" or "host:port"
// (default port 53).
func NewDNS(server string, timeout time.Duration) *DNS {
	if timeout <= 0 {
		timeout = DefaultDNSTimeout
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(strings.Trim(server, "[]"), "53")
	}
	return &DNS{
		server: server,
		udp:    &dns.Client{Net: "udp", Timeout: timeout},
		tcp:    &dns.Client{Net: "tcp", Timeout: timeout},
	}
}

// Server returns the nameserver address in use.
func (d *DNS) Server() string {
	return d.server
}

// LookupNetIP implements Resolver.
func (d *DNS) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{ip.Unmap()}, nil
	}

	var qtypes []uint16
	switch network {
	case "ip", "":
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	case "ip4":
		qtypes = []uint16{dns.TypeA}
	case "ip6":
		qtypes = []uint16{dns.TypeAAAA}
	default:
		return nil, &LookupError{Host: host, Server: d.server, Reason: fmt.Sprintf("unsupported network %q", network)}
	}

	var addrs []netip.Addr
	for _, qtype := range qtypes {
		found, err := d.query(ctx, host, qtype)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, found...)
	}
	if len(addrs) == 0 {
		return nil, &LookupError{Host: host, Server: d.server, Reason: "no addresses", NotFound: true}
	}
	return addrs, nil
}

func (d *DNS) query(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, _, err := d.udp.ExchangeContext(ctx, msg, d.server)
	if err == nil && resp.Truncated {
		resp, _, err = d.tcp.ExchangeContext(ctx, msg, d.server)
	}
	if err != nil {
		return nil, &LookupError{Host: host, Server: d.server, Err: err}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &LookupError{Host: host, Server: d.server, Reason: "no such host", NotFound: true}
	default:
		return nil, &LookupError{Host: host, Server: d.server, Reason: "server answered " + dns.RcodeToString[resp.Rcode]}
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		var raw net.IP
		switch rr := rr.(type) {
		case *dns.A:
			raw = rr.A
		case *dns.AAAA:
			raw = rr.AAAA
		default:
			continue
		}
		if ip, ok := netip.AddrFromSlice(raw); ok {
			addrs = append(addrs, ip.Unmap())
		}
	}
	return addrs, nil
}
