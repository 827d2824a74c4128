// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package policy decides which destinations a validation may reach.
//
// A Policy is the base stance. A CustomPolicy layers explicit allow and block
// entries on top of one, built through a Builder. Both satisfy Checker.
package policy

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/tenuo-ai/airlock/pkg/blocklist"
)

// Policy is the base stance applied to resolved addresses.
type Policy int

const (
	// PublicOnly blocks loopback, metadata, private and link-local
	// destinations. It is the zero value.
	PublicOnly Policy = iota
	// AllowPrivate permits private and link-local ranges but still blocks
	// loopback and metadata destinations.
	AllowPrivate
)

// String returns the configuration name of p.
func (p Policy) String() string {
	switch p {
	case PublicOnly:
		return "public-only"
	case AllowPrivate:
		return "allow-private"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts "public-only" or "allow-private". Case, hyphens and
// underscores are ignored.
func ParsePolicy(s string) (Policy, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "", "publiconly":
		return PublicOnly, nil
	case "allowprivate":
		return AllowPrivate, nil
	default:
		return PublicOnly, fmt.Errorf("unknown policy %q (want public-only or allow-private)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if p != PublicOnly && p != AllowPrivate {
		return nil, fmt.Errorf("invalid policy value %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// IsIPBlocked classifies ip under p. Loopback, metadata, unspecified,
// multicast, broadcast and reserved addresses are blocked under every policy;
// private and link-local addresses only under PublicOnly. The returned string
// is a display-ready reason and is empty when ip is allowed.
func IsIPBlocked(ip netip.Addr, p Policy) (string, bool) {
	ip = blocklist.Normalize(ip)
	c, blocked := classify(ip, p)
	if !blocked {
		return "", false
	}
	return c.Reason(ip), true
}

func classify(ip netip.Addr, p Policy) (blocklist.Category, bool) {
	c := blocklist.Classify(ip)
	switch c {
	case blocklist.Public:
		return c, false
	case blocklist.Private, blocklist.LinkLocal:
		return c, p != AllowPrivate
	default:
		return c, true
	}
}

// IsIPAllowed implements Checker.
func (p Policy) IsIPAllowed(ip netip.Addr) error {
	ip = blocklist.Normalize(ip)
	if c, blocked := classify(ip, p); blocked {
		return &Denial{Subject: ip.String(), Rule: c.String(), Reason: c.Reason(ip)}
	}
	return nil
}

// IsHostnameAllowed implements Checker using the static hostname table.
func (p Policy) IsHostnameAllowed(host string) error {
	if reason, blocked := blocklist.IsHostnameBlocked(host); blocked {
		return &Denial{Subject: host, Rule: "builtin hostname", Reason: reason}
	}
	return nil
}
