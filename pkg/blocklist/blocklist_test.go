// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package blocklist

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		ip   string
		want Category
	}{
		{"127.0.0.1", Loopback},
		{"127.255.255.254", Loopback},
		{"::1", Loopback},
		{"::ffff:127.0.0.1", Loopback},
		{"0.0.0.0", Unspecified},
		{"0.1.2.3", Unspecified},
		{"::", Unspecified},
		{"169.254.169.254", Metadata},
		{"::ffff:169.254.169.254", Metadata},
		{"169.254.170.2", Metadata},
		{"fd00:ec2::254", Metadata},
		{"100.100.100.200", Metadata},
		{"192.0.0.192", Metadata},
		{"169.254.1.1", LinkLocal},
		{"fe80::1", LinkLocal},
		{"fe80::1%eth0", LinkLocal},
		{"10.0.0.1", Private},
		{"172.16.0.1", Private},
		{"172.31.255.255", Private},
		{"192.168.1.1", Private},
		{"100.64.0.1", Private},
		{"fd12:3456::1", Private},
		{"224.0.0.1", Multicast},
		{"ff02::1", Multicast},
		{"255.255.255.255", Broadcast},
		{"240.0.0.1", Reserved},
		{"192.0.0.8", Reserved},
		{"198.18.0.1", Reserved},
		{"198.19.255.254", Reserved},
		{"198.20.0.1", Public},
		{"172.32.0.1", Public},
		{"8.8.8.8", Public},
		{"93.184.216.34", Public},
		{"2606:4700:4700::1111", Public},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got := Classify(netip.MustParseAddr(tt.ip))
			assert.Equal(t, tt.want, got, "Classify(%s) = %s, want %s", tt.ip, got, tt.want)
		})
	}
}

func TestClassify_EmbeddedIPv4(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want Category
	}{
		{"nat64 loopback", "64:ff9b::7f00:1", Loopback},
		{"nat64 metadata", "64:ff9b::a9fe:a9fe", Metadata},
		{"nat64 public", "64:ff9b::808:808", Public},
		{"ipv4 compatible loopback", "::127.0.0.1", Loopback},
		{"ipv4 compatible low address", "::2", Unspecified},
		{"6to4 metadata", "2002:a9fe:a9fe::1", Metadata},
		{"6to4 private", "2002:c0a8:101::1", Private},
		{"6to4 public", "2002:808:808::1", Public},
		{"teredo loopback", "2001:0:4136:e378:8000:63bf:80ff:fffe", Loopback},
		{"teredo private server", "2001:0:a00:1:8000:63bf:3fff:fdd2", Private},
		{"teredo public", "2001:0:4136:e378:8000:63bf:3fff:fdd2", Public},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(netip.MustParseAddr(tt.ip)))
		})
	}
}

func TestClassify_InvalidAddress(t *testing.T) {
	assert.Equal(t, Unspecified, Classify(netip.Addr{}))
}

func TestEmbeddedIPv4(t *testing.T) {
	v4, ok := EmbeddedIPv4(netip.MustParseAddr("64:ff9b::c000:201"))
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), v4)

	_, ok = EmbeddedIPv4(netip.MustParseAddr("::1"))
	assert.False(t, ok)
	_, ok = EmbeddedIPv4(netip.MustParseAddr("192.0.2.1"))
	assert.False(t, ok)
	_, ok = EmbeddedIPv4(netip.MustParseAddr("2606:4700:4700::1111"))
	assert.False(t, ok)
}

func TestEmbeddedIPv4s(t *testing.T) {
	assert.Equal(t,
		[]netip.Addr{netip.MustParseAddr("192.0.2.45"), netip.MustParseAddr("10.0.0.1")},
		EmbeddedIPv4s(netip.MustParseAddr("2001:0:a00:1:8000:63bf:3fff:fdd2")))
	assert.Equal(t,
		[]netip.Addr{netip.MustParseAddr("10.0.0.1")},
		EmbeddedIPv4s(netip.MustParseAddr("64:ff9b::a00:1")))
	assert.Nil(t, EmbeddedIPv4s(netip.MustParseAddr("10.0.0.1")))
}

func TestCategory_Reason(t *testing.T) {
	ip := netip.MustParseAddr("127.0.0.1")
	assert.Equal(t, "127.0.0.1 is a loopback address", Loopback.Reason(ip))
	assert.Equal(t, "169.254.169.254 is a cloud metadata endpoint", Metadata.Reason(netip.MustParseAddr("169.254.169.254")))
	assert.Equal(t, "loopback", Loopback.String())
	assert.Equal(t, "category(42)", Category(42).String())
}

func TestIsHostnameBlocked(t *testing.T) {
	tests := []struct {
		host    string
		blocked bool
	}{
		{"metadata.google.internal", true},
		{"METADATA.Google.Internal", true},
		{"metadata.google.internal.", true},
		{"metadata.goog", true},
		{"instance-data", true},
		{"localhost", true},
		{"api.localhost", true},
		{"example.com", false},
		{"notmetadata.google.internal", false},
		{"metadata.google.internal.evil.com", false},
		{"localhost.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			reason, blocked := IsHostnameBlocked(tt.host)
			assert.Equal(t, tt.blocked, blocked)
			if tt.blocked {
				assert.Contains(t, reason, tt.host)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestBlockedHostnames_Sorted(t *testing.T) {
	names := BlockedHostnames()
	assert.Contains(t, names, "metadata.google.internal")
	assert.IsNonDecreasing(t, names)
}
