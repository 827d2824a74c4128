// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/tenuo-ai/airlock/pkg/blocklist"
	"github.com/tenuo-ai/airlock/pkg/safeurl"
)

// Builder accumulates entries for a CustomPolicy. It is not safe for
// concurrent use; hand the built CustomPolicy around instead.
//
// Malformed CIDRs are dropped, as are empty host patterns. Every dropped or
// suspicious entry is recorded and reported by Err, and BuildStrict refuses to
// build while any are present.
type Builder struct {
	base         Policy
	blockedCIDRs []netip.Prefix
	allowedCIDRs []netip.Prefix
	blockedHosts []string
	allowedHosts []string
	errs         []error
}

// NewBuilder starts a builder on top of base.
func NewBuilder(base Policy) *Builder {
	return &Builder{base: base}
}

// BlockCIDR denies an IP range, e.g. "10.0.0.0/8".
func (b *Builder) BlockCIDR(cidr string) *Builder {
	if p, ok := b.parseCIDR("block_cidr", cidr); ok {
		b.blockedCIDRs = append(b.blockedCIDRs, p)
	}
	return b
}

// AllowCIDR permits an IP range, overriding block entries and the base policy.
func (b *Builder) AllowCIDR(cidr string) *Builder {
	if p, ok := b.parseCIDR("allow_cidr", cidr); ok {
		b.allowedCIDRs = append(b.allowedCIDRs, p)
	}
	return b
}

// BlockHost denies a hostname or "*.suffix" pattern.
func (b *Builder) BlockHost(pattern string) *Builder {
	if p, ok := b.normalizePattern("block_host", pattern); ok {
		b.blockedHosts = append(b.blockedHosts, p)
	}
	return b
}

// AllowHost permits a hostname or "*.suffix" pattern, overriding block
// entries and the static hostname table.
func (b *Builder) AllowHost(pattern string) *Builder {
	if p, ok := b.normalizePattern("allow_host", pattern); ok {
		b.allowedHosts = append(b.allowedHosts, p)
	}
	return b
}

// Err returns every entry problem recorded so far, or nil.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Build freezes the accumulated entries. The result shares no memory with the
// builder, so later builder calls do not affect it.
func (b *Builder) Build() *CustomPolicy {
	return &CustomPolicy{
		base:         b.base,
		blockedCIDRs: slices.Clone(b.blockedCIDRs),
		allowedCIDRs: slices.Clone(b.allowedCIDRs),
		blockedHosts: slices.Clone(b.blockedHosts),
		allowedHosts: slices.Clone(b.allowedHosts),
	}
}

// BuildStrict is Build, except that it fails when any entry was malformed.
func (b *Builder) BuildStrict() (*CustomPolicy, error) {
	if err := b.Err(); err != nil {
		return nil, fmt.Errorf("invalid policy entries: %w", err)
	}
	return b.Build(), nil
}

func (b *Builder) parseCIDR(op, cidr string) (netip.Prefix, bool) {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s %q: %w", op, cidr, err))
		return netip.Prefix{}, false
	}
	// ::ffff:a.b.c.d/n describes an IPv4 range; addresses are unmapped before
	// matching so the prefix has to be as well.
	if p.Addr().Is4In6() {
		if p.Bits() < 96 {
			b.errs = append(b.errs, fmt.Errorf("%s %q: IPv4-mapped prefix must be at least /96", op, cidr))
			return netip.Prefix{}, false
		}
		p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
	}
	return p.Masked(), true
}

func (b *Builder) normalizePattern(op, pattern string) (string, bool) {
	p := blocklist.NormalizeHostname(strings.TrimSpace(pattern))
	if p == "" {
		b.errs = append(b.errs, fmt.Errorf("%s %q: empty pattern", op, pattern))
		return "", false
	}
	rest, wildcard := strings.CutPrefix(p, "*.")
	if rest == "" || strings.Contains(rest, "*") {
		b.errs = append(b.errs, fmt.Errorf("%s %q: only a leading \"*.\" wildcard is supported", op, pattern))
		return p, true
	}
	// Hosts are compared in the form safeurl.SafeURL.Key produces.
	key, err := safeurl.CanonicalHost(rest)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s %q: %w", op, pattern, err))
		return "", false
	}
	if wildcard {
		key = "*." + key
	}
	return key, true
}
