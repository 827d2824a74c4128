// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package resolver defines the DNS lookup capability validation depends on,
// along with a few implementations of it.
package resolver

import (
	"context"
	"net"
	"net/netip"
)

// Resolver looks up the addresses of host. network is "ip", "ip4" or "ip6".
// Addresses are returned in response order. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Func adapts an ordinary function to Resolver.
type Func func(ctx context.Context, network, host string) ([]netip.Addr, error)

// LookupNetIP calls f.
func (f Func) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	return f(ctx, network, host)
}

// System returns the resolver of the Go runtime.
func System() Resolver {
	return net.DefaultResolver
}

// Static answers every lookup of a known host from a fixed table and fails
// others with a not-found LookupError.
type Static map[string][]netip.Addr

// LookupNetIP implements Resolver.
func (s Static) LookupNetIP(_ context.Context, network, host string) ([]netip.Addr, error) {
	addrs, ok := s[canonicalName(host)]
	if !ok {
		return nil, &LookupError{Host: host, Reason: "no such host", NotFound: true}
	}
	out := filterNetwork(addrs, network)
	if len(out) == 0 {
		return nil, &LookupError{Host: host, Reason: "no addresses", NotFound: true}
	}
	return out, nil
}

func filterNetwork(addrs []netip.Addr, network string) []netip.Addr {
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		a = a.Unmap()
		switch {
		case network == "ip4" && !a.Is4():
		case network == "ip6" && !a.Is6():
		default:
			out = append(out, a)
		}
	}
	return out
}
