// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package blocklist

import (
	"fmt"
	"sort"
	"strings"
)

// blockedHostnames maps well-known metadata and internal names to the reason
// they are refused. Keys are lower case without a trailing dot.
var blockedHostnames = map[string]string{
	"metadata.google.internal":     "GCP metadata service",
	"metadata.goog":                "GCP metadata service",
	"metadata":                     "cloud metadata alias",
	"instance-data":                "AWS metadata alias",
	"instance-data.ec2.internal":   "AWS metadata alias",
	"metadata.azure.internal":      "Azure metadata alias",
	"metadata.platformequinix.com": "Equinix Metal metadata service",
	"localhost":                    "loopback name",
	"localhost.localdomain":        "loopback name",
}

// NormalizeHostname lower-cases host and removes a single trailing dot.
func NormalizeHostname(host string) string {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

// IsHostnameBlocked reports whether host is a known metadata or internal name.
// The returned string explains the match. Names under .localhost are always
// blocked since they resolve to loopback.
func IsHostnameBlocked(host string) (string, bool) {
	key := NormalizeHostname(host)
	if why, ok := blockedHostnames[key]; ok {
		return fmt.Sprintf("hostname %s is blocked (%s)", host, why), true
	}
	if strings.HasSuffix(key, ".localhost") {
		return fmt.Sprintf("hostname %s is blocked (loopback name)", host), true
	}
	return "", false
}

// BlockedHostnames returns the static hostname table, sorted.
func BlockedHostnames() []string {
	out := make([]string, 0, len(blockedHostnames))
	for h := range blockedHostnames {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
