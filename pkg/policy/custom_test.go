// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenuo-ai/airlock/pkg/safeurl"
)

func TestCustomPolicy_BlockCIDR(t *testing.T) {
	p := NewBuilder(AllowPrivate).BlockCIDR("10.0.0.0/8").Build()

	err := p.IsIPAllowed(addr("10.1.2.3"))
	require.Error(t, err)
	assert.Equal(t, "10.1.2.3 is in blocked CIDR 10.0.0.0/8", err.Error())
	assert.NoError(t, p.IsIPAllowed(addr("192.168.1.1")))
}

func TestCustomPolicy_BlockCIDRCoversEmbeddedIPv4(t *testing.T) {
	p := NewBuilder(AllowPrivate).BlockCIDR("10.0.0.0/8").Build()

	tests := []struct {
		name string
		ip   string
	}{
		{"plain", "10.0.0.1"},
		{"mapped", "::ffff:10.0.0.1"},
		{"nat64", "64:ff9b::a00:1"},
		{"6to4", "2002:a00:1::1"},
		{"ipv4 compatible", "::10.0.0.1"},
		{"teredo client", "2001:0:4136:e378:8000:63bf:f5ff:fffe"},
		{"teredo server", "2001:0:a00:1:8000:63bf:3fff:fdd2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.IsIPAllowed(addr(tt.ip))
			require.Error(t, err)
			var d *Denial
			require.ErrorAs(t, err, &d)
			assert.Equal(t, "block_cidr 10.0.0.0/8", d.Rule)
		})
	}

	assert.NoError(t, p.IsIPAllowed(addr("64:ff9b::c0a8:101")), "embedded private address outside the block entry")
}

func TestCustomPolicy_AllowCIDRIgnoresEmbeddedIPv4(t *testing.T) {
	p := NewBuilder(PublicOnly).AllowCIDR("10.0.0.0/8").Build()

	assert.NoError(t, p.IsIPAllowed(addr("10.0.0.1")))
	assert.Error(t, p.IsIPAllowed(addr("64:ff9b::a00:1")))
	assert.Error(t, p.IsIPAllowed(addr("2002:a00:1::1")))
}

func TestCustomPolicy_AllowCIDROverridesBase(t *testing.T) {
	p := NewBuilder(PublicOnly).AllowCIDR("192.168.1.0/24").Build()

	assert.NoError(t, p.IsIPAllowed(addr("192.168.1.50")))
	assert.Error(t, p.IsIPAllowed(addr("192.168.2.1")))
}

func TestCustomPolicy_AllowCIDROverridesAlwaysBlocked(t *testing.T) {
	p := NewBuilder(PublicOnly).AllowCIDR("127.0.0.1/32").Build()

	assert.NoError(t, p.IsIPAllowed(addr("127.0.0.1")))
	assert.NoError(t, p.IsIPAllowed(addr("::ffff:127.0.0.1")), "mapped form matches the IPv4 entry")
	assert.Error(t, p.IsIPAllowed(addr("127.0.0.2")))
}

func TestCustomPolicy_BlockOverridesPublic(t *testing.T) {
	p := NewBuilder(PublicOnly).BlockCIDR("93.184.216.0/24").Build()

	err := p.IsIPAllowed(addr("93.184.216.34"))
	var denial *Denial
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, "block_cidr 93.184.216.0/24", denial.Rule)
	assert.NoError(t, p.IsIPAllowed(addr("8.8.8.8")))
}

func TestCustomPolicy_AllowWinsOverOverlappingBlock(t *testing.T) {
	tests := []struct {
		name  string
		build func() *CustomPolicy
		ip    string
		allow bool
	}{
		{
			name: "narrow allow inside wide block",
			build: func() *CustomPolicy {
				return NewBuilder(AllowPrivate).BlockCIDR("10.0.0.0/8").AllowCIDR("10.1.0.0/16").Build()
			},
			ip:    "10.1.2.3",
			allow: true,
		},
		{
			name: "narrow allow inside wide block, outside allow",
			build: func() *CustomPolicy {
				return NewBuilder(AllowPrivate).BlockCIDR("10.0.0.0/8").AllowCIDR("10.1.0.0/16").Build()
			},
			ip:    "10.2.0.1",
			allow: false,
		},
		{
			name: "wide allow over narrow block, added in either order",
			build: func() *CustomPolicy {
				return NewBuilder(PublicOnly).AllowCIDR("10.0.0.0/8").BlockCIDR("10.1.0.0/16").Build()
			},
			ip:    "10.1.2.3",
			allow: true,
		},
		{
			name: "adjacent ranges do not bleed",
			build: func() *CustomPolicy {
				return NewBuilder(AllowPrivate).AllowCIDR("10.0.0.0/25").BlockCIDR("10.0.0.128/25").Build()
			},
			ip:    "10.0.0.128",
			allow: false,
		},
		{
			name: "adjacent ranges, allowed side",
			build: func() *CustomPolicy {
				return NewBuilder(AllowPrivate).AllowCIDR("10.0.0.0/25").BlockCIDR("10.0.0.128/25").Build()
			},
			ip:    "10.0.0.127",
			allow: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().IsIPAllowed(addr(tt.ip))
			if tt.allow {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCustomPolicy_MetadataStillBlockedUnderAllowPrivate(t *testing.T) {
	p := NewBuilder(AllowPrivate).AllowCIDR("10.0.0.0/8").Build()
	assert.Error(t, p.IsIPAllowed(addr("169.254.169.254")))
	assert.Error(t, p.IsIPAllowed(addr("127.0.0.1")))
}

func TestCustomPolicy_HostPatterns(t *testing.T) {
	p := NewBuilder(PublicOnly).BlockHost("*.internal.example.com").Build()

	assert.Error(t, p.IsHostnameAllowed("api.internal.example.com"))
	assert.Error(t, p.IsHostnameAllowed("internal.example.com"))
	assert.Error(t, p.IsHostnameAllowed("API.Internal.Example.com"))
	assert.Error(t, p.IsHostnameAllowed("deep.api.internal.example.com."))
	assert.NoError(t, p.IsHostnameAllowed("example.com"))
	assert.NoError(t, p.IsHostnameAllowed("notinternal.example.com"))
	assert.NoError(t, p.IsHostnameAllowed("api.example.com"))

	err := p.IsHostnameAllowed("api.internal.example.com")
	assert.Equal(t, "hostname api.internal.example.com matches blocked pattern *.internal.example.com", err.Error())
}

func TestCustomPolicy_AllowHost(t *testing.T) {
	p := NewBuilder(PublicOnly).
		AllowHost("Trusted.Internal").
		BlockHost("*.internal").
		Build()

	assert.NoError(t, p.IsHostnameAllowed("trusted.internal"))
	assert.Error(t, p.IsHostnameAllowed("other.internal"))
}

func TestCustomPolicy_AllowHostOverridesStaticTable(t *testing.T) {
	assert.Error(t, NewBuilder(PublicOnly).Build().IsHostnameAllowed("metadata.google.internal"))

	p := NewBuilder(PublicOnly).AllowHost("metadata.google.internal").Build()
	assert.NoError(t, p.IsHostnameAllowed("metadata.google.internal"))
	assert.Error(t, p.IsIPAllowed(addr("169.254.169.254")), "address check is independent of the hostname allow")
}

func TestMatchHostname(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"example.com", "example.com", true},
		{"www.example.com", "example.com", false},
		{"a.example.com", "*.example.com", true},
		{"a.b.example.com", "*.example.com", true},
		{"example.com", "*.example.com", true},
		{"badexample.com", "*.example.com", false},
		{".example.com", "*.example.com", false},
		{"com", "*.example.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchHostname(tt.host, tt.pattern), "%s vs %s", tt.host, tt.pattern)
	}
}

func TestBuilder_MalformedEntries(t *testing.T) {
	b := NewBuilder(AllowPrivate).
		BlockCIDR("10.0.0.0/8").
		BlockCIDR("not-a-cidr").
		AllowCIDR("300.0.0.0/8").
		AllowHost("").
		BlockHost("foo.*.com")

	p := b.Build()
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}, p.BlockedCIDRs())
	assert.Empty(t, p.AllowedCIDRs())
	assert.Empty(t, p.AllowedHosts())
	assert.Equal(t, []string{"foo.*.com"}, p.BlockedHosts())

	err := b.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-cidr")
	assert.Contains(t, err.Error(), "300.0.0.0/8")
	assert.Contains(t, err.Error(), "empty pattern")

	_, err = b.BuildStrict()
	assert.Error(t, err)
}

func TestBuilder_BuildStrict(t *testing.T) {
	p, err := NewBuilder(PublicOnly).AllowCIDR(" 192.168.1.7/24 ").BlockHost("*.Corp.Example.").BuildStrict()
	require.NoError(t, err)
	assert.Equal(t, PublicOnly, p.Base())
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")}, p.AllowedCIDRs())
	assert.Equal(t, []string{"*.corp.example"}, p.BlockedHosts())
}

func TestBuilder_MappedPrefix(t *testing.T) {
	p := NewBuilder(AllowPrivate).BlockCIDR("::ffff:10.0.0.0/104").Build()
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}, p.BlockedCIDRs())
	assert.Error(t, p.IsIPAllowed(addr("10.9.9.9")))
}

func TestBuilder_MappedPrefixTooShort(t *testing.T) {
	b := NewBuilder(AllowPrivate).BlockCIDR("::ffff:0:0/95")
	assert.Empty(t, b.Build().BlockedCIDRs())

	err := b.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "::ffff:0:0/95")
	_, err = b.BuildStrict()
	assert.Error(t, err)
}

func TestBuilder_UnicodeHostPatterns(t *testing.T) {
	b := NewBuilder(PublicOnly).
		BlockHost("bücher.de").
		BlockHost("*.ÉXAMPLE.com").
		AllowHost("[::1]")
	require.NoError(t, b.Err())

	wildcard, err := safeurl.CanonicalHost("éxample.com")
	require.NoError(t, err)

	p := b.Build()
	assert.Equal(t, []string{"xn--bcher-kva.de", "*." + wildcard}, p.BlockedHosts())
	assert.Equal(t, []string{"::1"}, p.AllowedHosts())

	for _, host := range []string{
		"xn--bcher-kva.de",
		"bücher.de",
		"BÜCHER.DE.",
		wildcard,
		"api." + wildcard,
		"api.éxample.com",
	} {
		err := p.IsHostnameAllowed(host)
		require.Error(t, err, host)
		var d *Denial
		require.ErrorAs(t, err, &d)
		assert.Contains(t, d.Rule, "block_host", host)
	}
	assert.NoError(t, p.IsHostnameAllowed("example.com"))
}

func TestBuilder_HostPatternsMatchParsedKeys(t *testing.T) {
	p := NewBuilder(PublicOnly).BlockHost("bücher.de").BlockHost("*.ÉXAMPLE.com").Build()

	for _, raw := range []string{"http://bücher.de/", "http://xn--bcher-kva.de/", "http://api.éxample.com/"} {
		u := safeurl.MustParse(raw)
		assert.Error(t, p.IsHostnameAllowed(u.Key()), raw)
	}
}

func TestBuilder_UnmappableHostPattern(t *testing.T) {
	b := NewBuilder(PublicOnly).BlockHost("bad host.example").BlockHost("good.example")
	assert.Equal(t, []string{"good.example"}, b.Build().BlockedHosts())

	err := b.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad host.example")
}

func TestBuilder_BuildIsFrozen(t *testing.T) {
	b := NewBuilder(AllowPrivate).BlockCIDR("10.0.0.0/8")
	p := b.Build()

	b.AllowCIDR("10.0.0.0/8")
	assert.Error(t, p.IsIPAllowed(addr("10.1.1.1")), "later builder calls must not reach a built policy")

	cidrs := p.BlockedCIDRs()
	cidrs[0] = netip.MustParsePrefix("1.0.0.0/8")
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), p.BlockedCIDRs()[0])
}
