// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package config binds command line flags and environment variables to the
// settings that assemble a policy and a validator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. AIRLOCK_POLICY.
const EnvPrefix = "AIRLOCK"

// BindRootFlags registers the persistent flags shared by every command and
// binds them to viper. Each flag can also be set through the environment:
// --block-cidr becomes AIRLOCK_BLOCK_CIDR.
func BindRootFlags(cmd *cobra.Command) {
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	flags := cmd.PersistentFlags()
	flags.String("policy", "", "Base policy: public-only or allow-private. Defaults to the policy file's base, then public-only. Env: AIRLOCK_POLICY")
	flags.StringSlice("allow-cidr", []string{}, "CIDR to allow, overriding block entries and the base policy. Repeatable. Env: AIRLOCK_ALLOW_CIDR")
	flags.StringSlice("block-cidr", []string{}, "CIDR to block. Repeatable. Env: AIRLOCK_BLOCK_CIDR")
	flags.StringSlice("allow-host", []string{}, "Hostname or *.suffix pattern to allow. Repeatable. Env: AIRLOCK_ALLOW_HOST")
	flags.StringSlice("block-host", []string{}, "Hostname or *.suffix pattern to block. Repeatable. Env: AIRLOCK_BLOCK_HOST")
	flags.String("policy-file", "", "YAML policy file merged with the flags above. Env: AIRLOCK_POLICY_FILE")
	flags.String("dns-server", "", "Resolve through this nameserver (host[:port]) instead of the system resolver. Env: AIRLOCK_DNS_SERVER")
	flags.Duration("dns-cache-ttl", 0, "Cache successful lookups for this long. 0 disables caching. Env: AIRLOCK_DNS_CACHE_TTL")
	flags.Duration("timeout", 5*time.Second, "Deadline for a single validation. Env: AIRLOCK_TIMEOUT")
	flags.Bool("all-addresses", false, "Require every resolved address to pass, not just the first. Env: AIRLOCK_ALL_ADDRESSES")
	flags.Bool("debug", false, "Enable debug logging. Env: AIRLOCK_DEBUG")
	flags.String("log-level", "info", "Set the log level (debug, info, warn, error). Env: AIRLOCK_LOG_LEVEL")
	flags.String("log-format", "text", "Set the log format (text, json). Env: AIRLOCK_LOG_FORMAT")
	flags.String("metrics-listen-address", "", "Address to expose Prometheus metrics on. If not specified, metrics are disabled. Env: AIRLOCK_METRICS_LISTEN_ADDRESS")

	for _, name := range []string{
		"policy", "allow-cidr", "block-cidr", "allow-host", "block-host", "policy-file",
		"dns-server", "dns-cache-ttl", "timeout", "all-addresses",
		"debug", "log-level", "log-format", "metrics-listen-address",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
			os.Exit(1)
		}
	}
}
