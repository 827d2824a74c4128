// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
