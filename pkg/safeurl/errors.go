// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package safeurl

import "fmt"

// Error reports why a URL was rejected. Raw has credentials removed.
type Error struct {
	Raw    string
	Reason string
	Err    error
}

func newError(raw, reason string, err error) *Error {
	return &Error{Raw: Redact(raw), Reason: reason, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid URL %q: %s: %v", e.Raw, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid URL %q: %s", e.Raw, e.Reason)
}

// Unwrap returns the underlying parser error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}
