// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tenuo-ai/airlock/pkg/config"
)

func newPolicyCmd(fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the effective policy as YAML",
		Long:  "Merges the policy file with the policy flags and prints the result in policy file format.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(cmd, fs)
			if err != nil {
				return err
			}
			p, err := settings.Policy()
			if err != nil {
				return err
			}
			data, err := config.FromPolicy(p).Marshal()
			if err != nil {
				return fmt.Errorf("failed to encode policy: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
