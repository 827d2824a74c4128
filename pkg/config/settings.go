// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tenuo-ai/airlock/pkg/logging"
	"github.com/tenuo-ai/airlock/pkg/policy"
	"github.com/tenuo-ai/airlock/pkg/resolver"
	"github.com/tenuo-ai/airlock/pkg/validation"
)

// Settings is the resolved configuration of one command invocation.
type Settings struct {
	policyName           string
	allowCIDRs           []string
	blockCIDRs           []string
	allowHosts           []string
	blockHosts           []string
	policyFile           string
	dnsServer            string
	dnsCacheTTL          time.Duration
	timeout              time.Duration
	allAddresses         bool
	debug                bool
	logLevel             string
	logFormat            string
	metricsListenAddress string
	fs                   afero.Fs
}

// NewSettings returns empty settings; call Load before use.
func NewSettings() *Settings {
	return &Settings{fs: afero.NewOsFs()}
}

// Load reads the bound flags and environment and initialises logging. Log
// output goes to the command's stderr.
func (s *Settings) Load(cmd *cobra.Command, fs afero.Fs) error {
	s.fs = fs

	s.policyName = viper.GetString("policy")
	s.allowCIDRs = viper.GetStringSlice("allow-cidr")
	s.blockCIDRs = viper.GetStringSlice("block-cidr")
	s.allowHosts = viper.GetStringSlice("allow-host")
	s.blockHosts = viper.GetStringSlice("block-host")
	s.policyFile = viper.GetString("policy-file")
	s.dnsServer = viper.GetString("dns-server")
	s.dnsCacheTTL = viper.GetDuration("dns-cache-ttl")
	s.timeout = viper.GetDuration("timeout")
	s.allAddresses = viper.GetBool("all-addresses")
	s.debug = viper.GetBool("debug")
	s.logLevel = viper.GetString("log-level")
	s.logFormat = viper.GetString("log-format")
	s.metricsListenAddress = viper.GetString("metrics-listen-address")

	if s.policyName != "" {
		if _, err := policy.ParsePolicy(s.policyName); err != nil {
			return &ActionableError{Err: err, Suggestion: "Use --policy public-only or --policy allow-private."}
		}
	}

	level, err := logging.ParseLevel(s.logLevel)
	if err != nil {
		return &ActionableError{Err: err, Suggestion: "Use one of debug, info, warn or error."}
	}
	if s.debug {
		level = slog.LevelDebug
	}
	if s.logFormat != "text" && s.logFormat != "json" {
		return &ActionableError{
			Err:        fmt.Errorf("unknown log format %q", s.logFormat),
			Suggestion: "Use --log-format text or --log-format json.",
		}
	}

	var out io.Writer = os.Stderr
	if cmd != nil {
		out = cmd.ErrOrStderr()
	}
	logging.Init(level, out, s.logFormat)
	return nil
}

// PolicyFile returns the configured policy file path, if any.
func (s *Settings) PolicyFile() string { return s.policyFile }

// DNSServer returns the configured nameserver, if any.
func (s *Settings) DNSServer() string { return s.dnsServer }

// Timeout returns the per-validation deadline.
func (s *Settings) Timeout() time.Duration { return s.timeout }

// MetricsListenAddress returns the metrics address; empty disables metrics.
func (s *Settings) MetricsListenAddress() string { return s.metricsListenAddress }

// IsDebug reports whether debug logging was requested.
func (s *Settings) IsDebug() bool { return s.debug }

// PolicySource returns the merged policy file and flag entries. The --policy
// flag, when set, overrides the file's base.
func (s *Settings) PolicySource() (*PolicyFile, error) {
	file := &PolicyFile{}
	if s.policyFile != "" {
		var err error
		if file, err = LoadPolicyFile(s.fs, s.policyFile); err != nil {
			return nil, err
		}
	}

	merged := file.Merge(&PolicyFile{
		AllowCIDRs: s.allowCIDRs,
		BlockCIDRs: s.blockCIDRs,
		AllowHosts: s.allowHosts,
		BlockHosts: s.blockHosts,
	})
	if s.policyName != "" {
		base, err := policy.ParsePolicy(s.policyName)
		if err != nil {
			return nil, err
		}
		merged.Base = base
	}
	return merged, nil
}

// Policy builds the effective policy. Any malformed entry is an error.
func (s *Settings) Policy() (*policy.CustomPolicy, error) {
	src, err := s.PolicySource()
	if err != nil {
		return nil, err
	}
	c, err := src.Builder().BuildStrict()
	if err != nil {
		return nil, &ActionableError{
			Err:        err,
			Suggestion: "CIDRs look like 10.0.0.0/8; host patterns are exact names or *.suffix.",
		}
	}
	return c, nil
}

// Resolver returns the system resolver, or a nameserver-specific one, wrapped
// in a cache when a TTL is configured.
func (s *Settings) Resolver() resolver.Resolver {
	var r resolver.Resolver = resolver.System()
	if s.dnsServer != "" {
		r = resolver.NewDNS(s.dnsServer, 0)
	}
	if s.dnsCacheTTL > 0 {
		r = resolver.NewCached(r, s.dnsCacheTTL, 0)
	}
	return r
}

// Validator assembles a validator from the settings.
func (s *Settings) Validator() *validation.Validator {
	opts := []validation.Option{
		validation.WithResolver(s.Resolver()),
		validation.WithTimeout(s.timeout),
	}
	if s.allAddresses {
		opts = append(opts, validation.WithAllAddresses())
	}
	return validation.New(opts...)
}
