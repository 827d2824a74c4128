// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Command airlock checks URLs against an SSRF policy from the command line or
// over HTTP.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tenuo-ai/airlock/pkg/appconsts"
	"github.com/tenuo-ai/airlock/pkg/config"
)

// errBlocked is returned by check when any URL fails, so the process exits 1.
var errBlocked = errors.New("one or more URLs were rejected")

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          appconsts.Name,
		Short:        "airlock validates outbound URLs against SSRF policies",
		SilenceUsage: true,
	}

	config.BindRootFlags(rootCmd)

	rootCmd.AddCommand(
		newCheckCmd(fs),
		newPolicyCmd(fs),
		newServeCmd(fs),
		newVersionCmd(),
	)
	return rootCmd
}

// loadSettings is shared by every subcommand that needs configuration.
func loadSettings(cmd *cobra.Command, fs afero.Fs) (*config.Settings, error) {
	s := config.NewSettings()
	if err := s.Load(cmd, fs); err != nil {
		return nil, fmt.Errorf("configuration load failed: %w", err)
	}
	return s, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of airlock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appconsts.Name, appconsts.Version)
			if err != nil {
				return fmt.Errorf("failed to print version: %w", err)
			}
			return nil
		},
	}
}
