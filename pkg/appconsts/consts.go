// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package appconsts holds build-time identity of the airlock binary.
package appconsts

const (
	// Name is used in help messages and other user-facing output.
	Name = "airlock"
)

// Version is set at build time using ldflags. The default value is "dev",
// which is used for local development builds.
var Version = "dev"
