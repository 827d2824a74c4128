// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package validation decides whether an untrusted URL may be fetched and, if
// so, which address to connect to.
//
// A validation runs these steps and stops at the first failure:
//
//  1. canonicalise the URL (ParseError)
//  2. check the hostname, before any DNS traffic (HostnameBlocked)
//  3. resolve: IP literals are used as is, names are looked up once and the
//     first answer is taken (DNSError)
//  4. check the address (SSRFBlocked)
//
// The result is a Validated value. Connections must be made to Validated.IP;
// Validated.Host is for the Host header and TLS server name only. Resolving
// the host again at connect time lets an attacker-controlled nameserver answer
// with a different, internal address after the check has passed.
package validation

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/tenuo-ai/airlock/pkg/blocklist"
	"github.com/tenuo-ai/airlock/pkg/logging"
	"github.com/tenuo-ai/airlock/pkg/metrics"
	"github.com/tenuo-ai/airlock/pkg/policy"
	"github.com/tenuo-ai/airlock/pkg/resolver"
	"github.com/tenuo-ai/airlock/pkg/safeurl"
)

// DefaultTimeout bounds every validation unless the caller's context ends
// sooner.
const DefaultTimeout = 5 * time.Second

var errNoAddresses = errors.New("no IP addresses found")

// Validated is a URL that passed validation.
//
// IP is the address to dial. Never resolve Host again to obtain a connect
// address; use it only for the Host header and TLS server name.
type Validated struct {
	IP    netip.Addr
	Host  string
	Port  uint16
	URL   string
	HTTPS bool
}

// AddrPort returns IP and Port as a netip.AddrPort.
func (v *Validated) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(v.IP, v.Port)
}

// Address returns "ip:port" ready for net.Dial.
func (v *Validated) Address() string {
	return v.AddrPort().String()
}

// Result is delivered by ValidateAsync. Exactly one of Validated and Err is
// set.
type Result struct {
	Validated *Validated
	Err       error
}

// Validator runs validations. It is safe for concurrent use.
type Validator struct {
	resolver     resolver.Resolver
	timeout      time.Duration
	allAddresses bool
	logger       *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithResolver replaces the system resolver.
func WithResolver(r resolver.Resolver) Option {
	return func(v *Validator) {
		if r != nil {
			v.resolver = r
		}
	}
}

// WithTimeout sets the deadline applied to every validation. A context with
// an earlier deadline still wins.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithAllAddresses requires every resolved address to pass, not only the
// first one.
func WithAllAddresses() Option {
	return func(v *Validator) {
		v.allAddresses = true
	}
}

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = l
	}
}

// New creates a Validator using the system resolver unless configured
// otherwise.
func New(opts ...Option) *Validator {
	v := &Validator{
		resolver: resolver.System(),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Timeout returns the per-validation deadline.
func (v *Validator) Timeout() time.Duration {
	return v.timeout
}

// Validate checks raw against checker. A nil checker means
// policy.PublicOnly. The validator timeout applies on top of ctx.
func (v *Validator) Validate(ctx context.Context, raw string, checker policy.Checker) (*Validated, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	res, err := v.validate(ctx, raw, checker)
	v.record(res, err)
	return res, err
}

// ValidateSync is Validate for callers without a context of their own. Its
// outcomes are identical to Validate with context.Background().
func (v *Validator) ValidateSync(raw string, checker policy.Checker) (*Validated, error) {
	return v.Validate(context.Background(), raw, checker)
}

// ValidateAsync runs Validate on its own goroutine. The channel receives one
// Result and is then closed; it is buffered, so abandoning it leaks nothing.
func (v *Validator) ValidateAsync(ctx context.Context, raw string, checker policy.Checker) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		res, err := v.Validate(ctx, raw, checker)
		ch <- Result{Validated: res, Err: err}
	}()
	return ch
}

func (v *Validator) validate(ctx context.Context, raw string, checker policy.Checker) (*Validated, error) {
	if checker == nil {
		checker = policy.PublicOnly
	}

	u, err := safeurl.Parse(raw)
	if err != nil {
		reason := err.Error()
		var perr *safeurl.Error
		if errors.As(err, &perr) {
			reason = perr.Reason
		}
		return nil, &Error{Kind: ParseError, URL: safeurl.Redact(raw), Reason: reason, Err: err}
	}

	if err := checker.IsHostnameAllowed(u.Key()); err != nil {
		return nil, &Error{Kind: HostnameBlocked, URL: u.String(), Host: u.Host(), Reason: err.Error(), Err: err}
	}

	var addrs []netip.Addr
	if ip, ok := u.Addr(); ok {
		addrs = []netip.Addr{ip}
	} else {
		addrs, err = v.lookup(ctx, u.Host())
		if err != nil {
			return nil, &Error{Kind: DNSError, URL: u.String(), Host: u.Host(), Reason: err.Error(), Err: err}
		}
	}

	check := addrs[:1]
	if v.allAddresses {
		check = addrs
	}
	for _, ip := range check {
		if err := checker.IsIPAllowed(ip); err != nil {
			return nil, &Error{Kind: SSRFBlocked, URL: u.String(), Host: u.Host(), IP: blocklist.Normalize(ip), Reason: err.Error(), Err: err}
		}
	}

	return &Validated{
		IP:    blocklist.Normalize(addrs[0]),
		Host:  u.Host(),
		Port:  u.Port(),
		URL:   u.String(),
		HTTPS: u.IsHTTPS(),
	}, nil
}

type lookupResult struct {
	addrs []netip.Addr
	err   error
}

// lookup resolves host once. The wait is abandoned when ctx ends even if the
// resolver ignores ctx.
func (v *Validator) lookup(ctx context.Context, host string) ([]netip.Addr, error) {
	defer metrics.MeasureSince([]string{"validate", "dns"}, time.Now())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan lookupResult, 1)
	go func() {
		addrs, err := v.resolver.LookupNetIP(ctx, "ip", host)
		ch <- lookupResult{addrs: addrs, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if len(res.addrs) == 0 {
			return nil, errNoAddresses
		}
		return res.addrs, nil
	}
}

func (v *Validator) log() *slog.Logger {
	if v.logger != nil {
		return v.logger
	}
	return logging.GetLogger()
}

func (v *Validator) record(res *Validated, err error) {
	if err == nil {
		metrics.IncrCounterWithLabels([]string{"validate"}, 1, []metrics.Label{{Name: "outcome", Value: "allowed"}})
		v.log().Debug("URL validated", "url", res.URL, "host", res.Host, "ip", res.IP.String(), "port", res.Port)
		return
	}

	var verr *Error
	if !errors.As(err, &verr) {
		return
	}
	metrics.IncrCounterWithLabels([]string{"validate"}, 1, []metrics.Label{{Name: "outcome", Value: verr.Kind.String()}})

	attrs := []any{"kind", verr.Kind.String(), "url", verr.URL, "reason", verr.Reason}
	if verr.Host != "" {
		attrs = append(attrs, "host", verr.Host)
	}
	if verr.IP.IsValid() {
		attrs = append(attrs, "ip", verr.IP.String())
	}
	switch verr.Kind {
	case HostnameBlocked, SSRFBlocked:
		v.log().Warn("URL blocked", attrs...)
	default:
		v.log().Info("URL rejected", attrs...)
	}
}
