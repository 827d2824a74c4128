// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package airlock decides whether the destination of a URL is safe to connect
// to before any outbound connection is made.
//
// A successful validation returns the IP address that was checked. Connect to
// that address and never resolve the hostname again:
//
//	v, err := airlock.Validate(ctx, rawURL, airlock.PublicOnly)
//	if err != nil {
//		return err
//	}
//	conn, err := dialer.DialContext(ctx, "tcp", v.Address())
//
// The pkg/transport package provides dialers and http.Transports that follow
// this rule.
package airlock

import (
	"context"

	"github.com/tenuo-ai/airlock/pkg/policy"
	"github.com/tenuo-ai/airlock/pkg/validation"
)

type (
	// Policy is a base policy.
	Policy = policy.Policy
	// Checker is implemented by Policy and *CustomPolicy.
	Checker = policy.Checker
	// CustomPolicy is a base policy refined by CIDR and hostname rules.
	CustomPolicy = policy.CustomPolicy
	// PolicyBuilder assembles a CustomPolicy.
	PolicyBuilder = policy.Builder
	// Validated is a URL that passed validation.
	Validated = validation.Validated
	// Error is returned for every failed validation.
	Error = validation.Error
	// Kind classifies a validation failure.
	Kind = validation.Kind
)

const (
	PublicOnly   = policy.PublicOnly
	AllowPrivate = policy.AllowPrivate

	ParseError      = validation.ParseError
	HostnameBlocked = validation.HostnameBlocked
	DNSError        = validation.DNSError
	SSRFBlocked     = validation.SSRFBlocked
)

var (
	ErrParse           = validation.ErrParse
	ErrHostnameBlocked = validation.ErrHostnameBlocked
	ErrDNS             = validation.ErrDNS
	ErrSSRFBlocked     = validation.ErrSSRFBlocked
)

// Validate checks raw against checker using the system resolver. A nil
// checker means PublicOnly.
func Validate(ctx context.Context, raw string, checker Checker) (*Validated, error) {
	return validation.Validate(ctx, raw, checker)
}

// ValidateSync is Validate for callers without a context. It gives up after
// validation.DefaultTimeout.
func ValidateSync(raw string, checker Checker) (*Validated, error) {
	return validation.ValidateSync(raw, checker)
}

// NewPolicyBuilder starts a custom policy from base.
func NewPolicyBuilder(base Policy) *PolicyBuilder {
	return policy.NewBuilder(base)
}

// IsKind reports whether err is a validation failure of kind k.
func IsKind(err error, k Kind) bool {
	return validation.IsKind(err, k)
}
