// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package policy

import "net/netip"

// Checker is what the validator consults. A nil error means allowed; a
// non-nil error is a *Denial.
type Checker interface {
	// IsHostnameAllowed is consulted before any DNS lookup.
	IsHostnameAllowed(host string) error
	// IsIPAllowed is consulted on the literal or resolved address.
	IsIPAllowed(ip netip.Addr) error
}

var (
	_ Checker = PublicOnly
	_ Checker = (*CustomPolicy)(nil)
)

// Denial explains why a hostname or address was refused.
type Denial struct {
	// Subject is the hostname or address that was checked.
	Subject string
	// Rule names what matched: a category, or the explicit entry.
	Rule string
	// Reason is suitable for direct display.
	Reason string
}

func (d *Denial) Error() string {
	return d.Reason
}
