// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/netip"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/tenuo-ai/airlock/pkg/policy"
	"gopkg.in/yaml.v3"
)

// PolicyFile is the YAML form of a custom policy:
//
//	base: allow-private
//	block_cidrs: [10.0.0.0/8]
//	allow_cidrs: [10.1.0.0/16]
//	block_hosts: ["*.internal.example.com"]
//	allow_hosts: [api.internal.example.com]
type PolicyFile struct {
	Base       policy.Policy `yaml:"base"`
	AllowCIDRs []string      `yaml:"allow_cidrs,omitempty"`
	BlockCIDRs []string      `yaml:"block_cidrs,omitempty"`
	AllowHosts []string      `yaml:"allow_hosts,omitempty"`
	BlockHosts []string      `yaml:"block_hosts,omitempty"`
}

// ParsePolicyFile decodes data. Unknown keys are an error; an empty document
// is an empty public-only policy.
func ParsePolicyFile(data []byte) (*PolicyFile, error) {
	pf := &PolicyFile{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode policy file: %w", err)
	}
	return pf, nil
}

// LoadPolicyFile reads and decodes the policy file at path.
func LoadPolicyFile(fsys afero.Fs, path string) (*PolicyFile, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ActionableError{
				Err:        fmt.Errorf("policy file %q not found: %w", path, err),
				Suggestion: "Check the --policy-file flag or the AIRLOCK_POLICY_FILE environment variable.",
			}
		}
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	pf, err := ParsePolicyFile(data)
	if err != nil {
		return nil, &ActionableError{
			Err:        fmt.Errorf("%s: %w", path, err),
			Suggestion: "Valid keys are base, allow_cidrs, block_cidrs, allow_hosts and block_hosts.",
		}
	}
	return pf, nil
}

// Builder returns a policy builder seeded with the file's entries.
func (pf *PolicyFile) Builder() *policy.Builder {
	b := policy.NewBuilder(pf.Base)
	addAll(b.AllowCIDR, pf.AllowCIDRs)
	addAll(b.BlockCIDR, pf.BlockCIDRs)
	addAll(b.AllowHost, pf.AllowHosts)
	addAll(b.BlockHost, pf.BlockHosts)
	return b
}

// Merge appends the entries of other, dropping duplicates, and keeps the
// receiver's base.
func (pf *PolicyFile) Merge(other *PolicyFile) *PolicyFile {
	return &PolicyFile{
		Base:       pf.Base,
		AllowCIDRs: lo.Uniq(append(append([]string{}, pf.AllowCIDRs...), other.AllowCIDRs...)),
		BlockCIDRs: lo.Uniq(append(append([]string{}, pf.BlockCIDRs...), other.BlockCIDRs...)),
		AllowHosts: lo.Uniq(append(append([]string{}, pf.AllowHosts...), other.AllowHosts...)),
		BlockHosts: lo.Uniq(append(append([]string{}, pf.BlockHosts...), other.BlockHosts...)),
	}
}

// Marshal encodes pf as YAML.
func (pf *PolicyFile) Marshal() ([]byte, error) {
	return yaml.Marshal(pf)
}

// FromPolicy converts a built policy back to its file form.
func FromPolicy(c *policy.CustomPolicy) *PolicyFile {
	prefixString := func(p netip.Prefix, _ int) string { return p.String() }
	return &PolicyFile{
		Base:       c.Base(),
		AllowCIDRs: lo.Map(c.AllowedCIDRs(), prefixString),
		BlockCIDRs: lo.Map(c.BlockedCIDRs(), prefixString),
		AllowHosts: c.AllowedHosts(),
		BlockHosts: c.BlockedHosts(),
	}
}

func addAll(add func(string) *policy.Builder, entries []string) {
	for _, e := range entries {
		add(e)
	}
}
