// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package resolver

import "fmt"

// LookupError describes a failed lookup.
type LookupError struct {
	Host     string
	Server   string
	Reason   string
	NotFound bool
	Err      error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	s := "lookup " + e.Host
	if e.Server != "" {
		s += " on " + e.Server
	}
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("%s: %s: %v", s, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", s, e.Err)
	default:
		return fmt.Sprintf("%s: %s", s, e.Reason)
	}
}

// Unwrap returns the transport error, if any.
func (e *LookupError) Unwrap() error {
	return e.Err
}
