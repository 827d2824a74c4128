// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/tenuo-ai/airlock/pkg/blocklist"
	"github.com/tenuo-ai/airlock/pkg/safeurl"
)

// CustomPolicy is a base Policy with explicit allow and block entries.
//
// Evaluation order, first match wins:
//  1. allow entries permit, overriding everything below
//  2. block entries deny
//  3. the base Policy (and the static hostname table) decides
//
// A CustomPolicy is immutable and safe for concurrent use. Build one with
// NewBuilder.
type CustomPolicy struct {
	base         Policy
	blockedCIDRs []netip.Prefix
	allowedCIDRs []netip.Prefix
	blockedHosts []string
	allowedHosts []string
}

// Base returns the underlying stance.
func (c *CustomPolicy) Base() Policy { return c.base }

// BlockedCIDRs returns a copy of the block ranges in insertion order.
func (c *CustomPolicy) BlockedCIDRs() []netip.Prefix { return slices.Clone(c.blockedCIDRs) }

// AllowedCIDRs returns a copy of the allow ranges in insertion order.
func (c *CustomPolicy) AllowedCIDRs() []netip.Prefix { return slices.Clone(c.allowedCIDRs) }

// BlockedHosts returns a copy of the block patterns in canonical ASCII form.
func (c *CustomPolicy) BlockedHosts() []string { return slices.Clone(c.blockedHosts) }

// AllowedHosts returns a copy of the allow patterns in canonical ASCII form.
func (c *CustomPolicy) AllowedHosts() []string { return slices.Clone(c.allowedHosts) }

// IsIPAllowed implements Checker.
func (c *CustomPolicy) IsIPAllowed(ip netip.Addr) error {
	ip = blocklist.Normalize(ip)

	for _, cidr := range c.allowedCIDRs {
		if cidr.Contains(ip) {
			return nil
		}
	}

	// Block entries also see the IPv4 address carried by NAT64, 6to4,
	// IPv4-compatible and Teredo addresses. Allow entries do not.
	embedded := blocklist.EmbeddedIPv4s(ip)
	for _, cidr := range c.blockedCIDRs {
		if cidr.Contains(ip) {
			return &Denial{
				Subject: ip.String(),
				Rule:    "block_cidr " + cidr.String(),
				Reason:  fmt.Sprintf("%s is in blocked CIDR %s", ip, cidr),
			}
		}
		for _, v4 := range embedded {
			if cidr.Contains(v4) {
				return &Denial{
					Subject: ip.String(),
					Rule:    "block_cidr " + cidr.String(),
					Reason:  fmt.Sprintf("%s embeds %s, which is in blocked CIDR %s", ip, v4, cidr),
				}
			}
		}
	}

	return c.base.IsIPAllowed(ip)
}

// IsHostnameAllowed implements Checker. host is compared in its IDNA-mapped
// form, so Unicode and punycode spellings match the same patterns.
func (c *CustomPolicy) IsHostnameAllowed(host string) error {
	key, err := safeurl.CanonicalHost(host)
	if err != nil {
		key = blocklist.NormalizeHostname(host)
	}

	for _, pattern := range c.allowedHosts {
		if MatchHostname(key, pattern) {
			return nil
		}
	}

	for _, pattern := range c.blockedHosts {
		if MatchHostname(key, pattern) {
			return &Denial{
				Subject: host,
				Rule:    "block_host " + pattern,
				Reason:  fmt.Sprintf("hostname %s matches blocked pattern %s", host, pattern),
			}
		}
	}

	return c.base.IsHostnameAllowed(host)
}

// MatchHostname reports whether host matches pattern. Both are expected in
// lower case. A pattern is either an exact name or "*.suffix", which matches
// "suffix" itself and any "x.suffix" with a non-empty x.
func MatchHostname(host, pattern string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		if host == suffix {
			return true
		}
		return len(host) > len(suffix)+1 && strings.HasSuffix(host, "."+suffix)
	}
	return host == pattern
}
