// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"context"

	"github.com/tenuo-ai/airlock/pkg/policy"
)

var defaultValidator = New()

// Default returns the validator behind the package-level functions. It uses
// the system resolver and DefaultTimeout.
func Default() *Validator {
	return defaultValidator
}

// Validate runs Default().Validate.
func Validate(ctx context.Context, raw string, checker policy.Checker) (*Validated, error) {
	return defaultValidator.Validate(ctx, raw, checker)
}

// ValidateSync runs Default().ValidateSync.
func ValidateSync(raw string, checker policy.Checker) (*Validated, error) {
	return defaultValidator.ValidateSync(raw, checker)
}
