// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"errors"
	"fmt"
	"net/netip"
)

// Kind classifies a validation failure.
type Kind int

const (
	// ParseError means the URL is malformed, uses a disallowed scheme or has
	// an ambiguous host.
	ParseError Kind = iota + 1
	// HostnameBlocked means the host was denied before any DNS lookup.
	HostnameBlocked
	// DNSError means resolution failed, timed out or returned nothing.
	// Callers may retry.
	DNSError
	// SSRFBlocked means the destination address was denied.
	SSRFBlocked
)

// Sentinels matched by errors.Is against an *Error of the same Kind.
var (
	ErrParse           = errors.New("invalid URL")
	ErrHostnameBlocked = errors.New("hostname blocked")
	ErrDNS             = errors.New("DNS resolution failed")
	ErrSSRFBlocked     = errors.New("SSRF blocked")
)

// String returns the snake_case name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case ParseError:
		return "parse_error"
	case HostnameBlocked:
		return "hostname_blocked"
	case DNSError:
		return "dns_error"
	case SSRFBlocked:
		return "ssrf_blocked"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case ParseError:
		return ErrParse
	case HostnameBlocked:
		return ErrHostnameBlocked
	case DNSError:
		return ErrDNS
	case SSRFBlocked:
		return ErrSSRFBlocked
	default:
		return nil
	}
}

// Error is returned for every failed validation. URL never contains
// credentials. IP is set only for SSRFBlocked.
type Error struct {
	Kind   Kind
	URL    string
	Host   string
	IP     netip.Addr
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := "validation failed"
	if s := e.Kind.sentinel(); s != nil {
		prefix = s.Error()
	}
	if e.Kind == DNSError && e.Host != "" {
		return fmt.Sprintf("%s for %s: %s", prefix, e.Host, e.Reason)
	}
	return prefix + ": " + e.Reason
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries an *Error of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}
