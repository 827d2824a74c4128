// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package airlock

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_IPLiterals(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		checker Checker
		kind    Kind
		ip      string
	}{
		{name: "public", url: "https://8.8.8.8/dns", checker: PublicOnly, ip: "8.8.8.8"},
		{name: "loopback", url: "http://127.0.0.1/", checker: PublicOnly, kind: SSRFBlocked},
		{name: "metadata under allow-private", url: "http://169.254.169.254/", checker: AllowPrivate, kind: SSRFBlocked},
		{name: "private under allow-private", url: "http://192.168.1.10/", checker: AllowPrivate, ip: "192.168.1.10"},
		{name: "nil checker is public-only", url: "http://10.0.0.1/", kind: SSRFBlocked},
		{name: "bad scheme", url: "file:///etc/passwd", checker: PublicOnly, kind: ParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Validate(context.Background(), tt.url, tt.checker)
			if tt.kind != 0 {
				require.Error(t, err)
				assert.True(t, IsKind(err, tt.kind), "got %v", err)
				assert.Nil(t, v)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, netip.MustParseAddr(tt.ip), v.IP)
		})
	}
}

func TestValidateSync_MatchesValidate(t *testing.T) {
	v, err := ValidateSync("http://[2001:4860:4860::8888]:8080/", PublicOnly)
	require.NoError(t, err)
	assert.Equal(t, "[2001:4860:4860::8888]:8080", v.Address())

	_, err = ValidateSync("http://[::1]/", PublicOnly)
	assert.True(t, errors.Is(err, ErrSSRFBlocked))
}

func TestNewPolicyBuilder(t *testing.T) {
	p := NewPolicyBuilder(PublicOnly).
		AllowCIDR("10.20.0.0/16").
		BlockHost("*.internal.example.com").
		Build()

	v, err := Validate(context.Background(), "http://10.20.1.1/", p)
	require.NoError(t, err)
	assert.Equal(t, "10.20.1.1", v.IP.String())

	_, err = Validate(context.Background(), "http://10.21.1.1/", p)
	assert.ErrorIs(t, err, ErrSSRFBlocked)

	_, err = Validate(context.Background(), "http://api.internal.example.com/", p)
	assert.ErrorIs(t, err, ErrHostnameBlocked)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, HostnameBlocked, verr.Kind)
}
