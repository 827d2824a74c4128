// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/tenuo-ai/airlock/pkg/validation"
)

// PinnedDialer connects to the address of one validation result and nothing
// else. The host is never resolved.
type PinnedDialer struct {
	validated *validation.Validated
	dialer    *net.Dialer
}

// NewPinnedDialer pins v.
func NewPinnedDialer(v *validation.Validated, cfg Config) *PinnedDialer {
	return &PinnedDialer{validated: v, dialer: cfg.dialer()}
}

// DialContext dials Validated.IP. addr must name the validated host and port.
func (d *PinnedDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if err := checkNetwork(network); err != nil {
		return nil, err
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if !sameHost(host, d.validated.Host) || port != strconv.Itoa(int(d.validated.Port)) {
		return nil, fmt.Errorf("%w: dial %s, validated %s", ErrAddressMismatch, addr, net.JoinHostPort(d.validated.Host, strconv.Itoa(int(d.validated.Port))))
	}
	return d.dialer.DialContext(ctx, network, d.validated.Address())
}

func sameHost(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

// NewPinnedTransport returns a transport that sends requests for v's URL to
// v's address, with v.Host as TLS server name. Proxies are disabled.
func NewPinnedTransport(v *validation.Validated, cfg Config) *http.Transport {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = strings.TrimSuffix(v.Host, ".")
	}

	t := newTransport(tlsConfig)
	t.DialContext = NewPinnedDialer(v, cfg).DialContext
	return t
}
