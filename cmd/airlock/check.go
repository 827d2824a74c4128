// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tenuo-ai/airlock/pkg/policy"
	"github.com/tenuo-ai/airlock/pkg/safeurl"
	"github.com/tenuo-ai/airlock/pkg/validation"
	"golang.org/x/sync/errgroup"
)

// report is the outcome of one URL, as printed by check and served by serve.
type report struct {
	URL     string `json:"url"`
	Allowed bool   `json:"allowed"`
	IP      string `json:"ip,omitempty"`
	Host    string `json:"host,omitempty"`
	Port    uint16 `json:"port,omitempty"`
	HTTPS   bool   `json:"https,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func newReport(raw string, v *validation.Validated, err error) report {
	if err == nil {
		return report{URL: v.URL, Allowed: true, IP: v.IP.String(), Host: v.Host, Port: v.Port, HTTPS: v.HTTPS}
	}
	r := report{URL: safeurl.Redact(raw), Reason: err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		r.URL = verr.URL
		r.Kind = verr.Kind.String()
		r.Reason = verr.Reason
		if verr.IP.IsValid() {
			r.IP = verr.IP.String()
		}
		r.Host = verr.Host
	}
	return r
}

func newCheckCmd(fs afero.Fs) *cobra.Command {
	var (
		output      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "check URL...",
		Short: "Validate URLs and print the address each one may be fetched from",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unknown output format %q (want text or json)", output)
			}

			settings, err := loadSettings(cmd, fs)
			if err != nil {
				return err
			}
			checker, err := settings.Policy()
			if err != nil {
				return err
			}

			reports := checkAll(cmd.Context(), settings.Validator(), checker, args, concurrency)

			if err := writeReports(cmd.OutOrStdout(), output, reports); err != nil {
				return fmt.Errorf("failed to write results: %w", err)
			}
			for _, r := range reports {
				if !r.Allowed {
					return errBlocked
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json).")
	cmd.Flags().IntVar(&concurrency, "concurrency", 8, "Maximum number of URLs validated at once.")
	return cmd
}

// checkAll validates urls concurrently and returns reports in input order.
func checkAll(ctx context.Context, v *validation.Validator, checker policy.Checker, urls []string, limit int) []report {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit < 1 {
		limit = 1
	}

	reports := make([]report, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, raw := range urls {
		g.Go(func() error {
			vctx, cancel := context.WithTimeout(gctx, v.Timeout())
			defer cancel()
			res, err := v.Validate(vctx, raw, checker)
			reports[i] = newReport(raw, res, err)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func writeReports(w io.Writer, format string, reports []report) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, r := range reports {
		var err error
		if r.Allowed {
			_, err = fmt.Fprintf(w, "ALLOW %s -> %s (host %s)\n", r.URL, joinAddr(r.IP, r.Port), r.Host)
		} else {
			_, err = fmt.Fprintf(w, "BLOCK %s [%s] %s\n", r.URL, r.Kind, r.Reason)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
