// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package transport provides dialers and http.Transports that connect only to
// validated addresses.
package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	"code.dny.dev/ssrf"
	"github.com/tenuo-ai/airlock/pkg/policy"
)

var (
	// ErrBlocked is wrapped by every connection refused by the connect-time
	// guard.
	ErrBlocked = errors.New("connection blocked")
	// ErrAddressMismatch is returned when a pinned dialer is asked for an
	// address other than the validated one.
	ErrAddressMismatch = errors.New("address does not match validated destination")
	// ErrNetwork is returned for non-TCP networks.
	ErrNetwork = errors.New("network not allowed")
)

// Config tunes the dialers and transports of this package.
type Config struct {
	// Checker re-checks the remote address right before each connect.
	// Defaults to policy.PublicOnly.
	Checker policy.Checker
	// Hardened additionally runs the code.dny.dev/ssrf guardian, which denies
	// every non-public destination regardless of Checker.
	Hardened bool
	// DialTimeout defaults to 30s.
	DialTimeout time.Duration
	// TLSConfig is cloned; ServerName is filled in where known.
	TLSConfig *tls.Config
}

func (c Config) checker() policy.Checker {
	if c.Checker == nil {
		return policy.PublicOnly
	}
	return c.Checker
}

func (c Config) dialer() *net.Dialer {
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   Control(c.checker(), c.Hardened),
	}
}

// Control returns a net.Dialer Control function that refuses to connect to
// addresses checker denies. It sees the address actually being dialled, after
// any resolution, so it also catches destinations that bypassed validation.
func Control(checker policy.Checker, hardened bool) func(network, address string, c syscall.RawConn) error {
	var guardian *ssrf.Guardian
	if hardened {
		guardian = ssrf.New(ssrf.WithAnyPort())
	}

	return func(network, address string, c syscall.RawConn) error {
		ap, err := netip.ParseAddrPort(address)
		if err != nil {
			return fmt.Errorf("%w: invalid address %q", ErrBlocked, address)
		}
		if err := checker.IsIPAllowed(ap.Addr()); err != nil {
			return fmt.Errorf("%w: %w", ErrBlocked, err)
		}
		if guardian != nil {
			if err := guardian.Safe(network, address, c); err != nil {
				return fmt.Errorf("%w: %w", ErrBlocked, err)
			}
		}
		return nil
	}
}

func checkNetwork(network string) error {
	switch network {
	case "tcp", "tcp4", "tcp6":
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrNetwork, network)
	}
}

func newTransport(tlsConfig *tls.Config) *http.Transport {
	return &http.Transport{
		// A proxy would resolve the host itself.
		Proxy:                 nil,
		TLSClientConfig:       tlsConfig,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
