// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
)

// ActionableError is a configuration error with a hint on how to fix it.
type ActionableError struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ActionableError) Error() string {
	return fmt.Sprintf("%v\n\t-> Fix: %s", e.Err, e.Suggestion)
}

// Unwrap returns the wrapped error.
func (e *ActionableError) Unwrap() error {
	return e.Err
}
