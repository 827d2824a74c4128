// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package resolver

import "strings"

func canonicalName(host string) string {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}
