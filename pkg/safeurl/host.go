// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package safeurl

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// hostProfile maps hostnames the way browsers do: UTS-46 non-transitional
// processing without the STD3 restriction, so names with underscores survive.
// Characters outside LDH and '_' are rejected afterwards.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
	idna.CheckHyphens(false),
	idna.BidiRule(),
)

// CanonicalHost returns host in the form SafeURL.Key reports: IDNA-mapped,
// lower-case ASCII without a trailing dot, and numeric IPv4 forms rewritten
// as dotted decimal. IPv6 literals, bracketed or not, come back in their
// compressed form.
func CanonicalHost(host string) (string, error) {
	if ip, err := netip.ParseAddr(strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")); err == nil && ip.Is6() && ip.Zone() == "" {
		return ip.String(), nil
	}
	_, key, herr := mapHost(host)
	if herr == nil && endsInNumber(key) {
		ip, ok := parseIPv4(key)
		if !ok {
			herr = &hostError{reason: "invalid IPv4 literal"}
		} else {
			key = ip.String()
		}
	}
	if herr != nil {
		if herr.err != nil {
			return "", fmt.Errorf("%s %q: %w", herr.reason, host, herr.err)
		}
		return "", fmt.Errorf("%s %q", herr.reason, host)
	}
	return key, nil
}

// mapHost runs h through hostProfile. ascii keeps a trailing dot; key does
// not.
func mapHost(h string) (ascii, key string, herr *hostError) {
	if h == "" {
		return "", "", &hostError{reason: "missing host"}
	}
	ascii, err := hostProfile.ToASCII(h)
	if err != nil {
		return "", "", &hostError{reason: "invalid hostname", err: err}
	}
	key = strings.TrimSuffix(ascii, ".")
	if key == "" {
		return "", "", &hostError{reason: "missing host"}
	}
	for _, label := range strings.Split(key, ".") {
		if label == "" {
			return "", "", &hostError{reason: "empty label in hostname"}
		}
	}
	for i := 0; i < len(key); i++ {
		if !hostByte(key[i]) {
			return "", "", &hostError{reason: "invalid character " + strconv.QuoteRune(rune(key[i])) + " in hostname"}
		}
	}
	return ascii, key, nil
}

// endsInNumber reports whether the last label of host is numeric, in which
// case the whole host must parse as an IPv4 address.
func endsInNumber(host string) bool {
	last := host[strings.LastIndexByte(host, '.')+1:]
	if last == "" {
		return false
	}
	if isDigits(last) {
		return true
	}
	if hex, ok := strings.CutPrefix(last, "0x"); ok {
		return hex == "" || isHex(hex)
	}
	return false
}

// parseIPv4 accepts the 1-4 part forms browsers accept, each part decimal,
// octal (leading 0) or hex (0x).
func parseIPv4(host string) (netip.Addr, bool) {
	parts := strings.Split(host, ".")
	if len(parts) > 4 {
		return netip.Addr{}, false
	}

	nums := make([]uint64, len(parts))
	for i, p := range parts {
		n, ok := parseIPv4Number(p)
		if !ok {
			return netip.Addr{}, false
		}
		nums[i] = n
	}

	for _, n := range nums[:len(nums)-1] {
		if n > 255 {
			return netip.Addr{}, false
		}
	}
	last := nums[len(nums)-1]
	if last >= 1<<(8*(5-len(nums))) {
		return netip.Addr{}, false
	}

	v := last
	for i, n := range nums[:len(nums)-1] {
		v += n << (8 * (3 - i))
	}
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}), true
}

func parseIPv4Number(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"):
		s, base = s[2:], 16
	case len(s) > 1 && s[0] == '0':
		s, base = s[1:], 8
	}
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
