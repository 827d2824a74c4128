// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tenuo-ai/airlock/pkg/validation"
)

// SafeDialer validates the destination of every connection and dials the
// validated address. Use it where the target is not known in advance, such
// as a client that follows redirects.
type SafeDialer struct {
	validator *validation.Validator
	cfg       Config
	dialer    *net.Dialer
}

// NewSafeDialer creates a SafeDialer. A nil validator means
// validation.Default().
func NewSafeDialer(validator *validation.Validator, cfg Config) *SafeDialer {
	if validator == nil {
		validator = validation.Default()
	}
	return &SafeDialer{validator: validator, cfg: cfg, dialer: cfg.dialer()}
}

// DialContext validates addr under the configured checker and connects to the
// resulting IP.
func (d *SafeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if err := checkNetwork(network); err != nil {
		return nil, err
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	v, err := d.validator.Validate(ctx, "http://"+net.JoinHostPort(host, port)+"/", d.cfg.checker())
	if err != nil {
		return nil, err
	}
	return d.dialer.DialContext(ctx, network, v.Address())
}

// NewSafeTransport returns a transport whose connections all go through a
// SafeDialer. Proxies are disabled.
func NewSafeTransport(validator *validation.Validator, cfg Config) *http.Transport {
	var tlsConfig = cfg.TLSConfig
	if tlsConfig != nil {
		tlsConfig = tlsConfig.Clone()
	}
	t := newTransport(tlsConfig)
	t.DialContext = NewSafeDialer(validator, cfg).DialContext
	return t
}

// NewSafeHTTPClient returns an http.Client built on NewSafeTransport.
func NewSafeHTTPClient(validator *validation.Validator, cfg Config) *http.Client {
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: NewSafeTransport(validator, cfg),
	}
}
