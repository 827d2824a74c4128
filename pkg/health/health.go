// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package health reports whether a validation service still fails closed.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/tenuo-ai/airlock/pkg/logging"
	"github.com/tenuo-ai/airlock/pkg/metrics"
	"github.com/tenuo-ai/airlock/pkg/policy"
	"github.com/tenuo-ai/airlock/pkg/validation"
)

const healthStatusGauge = "health_status"

// selfTestURLs must be rejected as SSRFBlocked by every policy.
var selfTestURLs = []string{
	"http://127.0.0.1/",
	"http://169.254.169.254/latest/meta-data/",
	"http://[::1]/",
}

// NewChecker returns a synchronous checker for v and checker. The "policy"
// check confirms loopback and metadata URLs are still blocked. When probeHost
// is set, the "resolver" check also requires that it resolves.
func NewChecker(v *validation.Validator, checker policy.Checker, probeHost string) health.Checker {
	opts := []health.CheckerOption{
		health.WithStatusListener(func(_ context.Context, state health.CheckerState) {
			status := float32(0.0)
			if state.Status == health.StatusUp {
				status = 1.0
			}
			metrics.SetGauge([]string{healthStatusGauge}, status)
			logging.GetLogger().Info("health status changed", "status", state.Status)
		}),
		health.WithCheck(policyCheck(v, checker)),
		health.WithCacheDuration(1 * time.Second),
	}
	if probeHost != "" {
		opts = append(opts, health.WithCheck(resolverCheck(v, checker, probeHost)))
	}
	return health.NewChecker(opts...)
}

// NewHandler serves the checker result as JSON: 200 when up, 503 otherwise.
func NewHandler(c health.Checker) http.Handler {
	return health.NewHandler(c)
}

func policyCheck(v *validation.Validator, checker policy.Checker) health.Check {
	return health.Check{
		Name:    "policy",
		Timeout: 5 * time.Second,
		Check: func(ctx context.Context) error {
			for _, raw := range selfTestURLs {
				_, err := v.Validate(ctx, raw, checker)
				if !validation.IsKind(err, validation.SSRFBlocked) {
					return fmt.Errorf("self-test URL %s was not blocked: %v", raw, err)
				}
			}
			return nil
		},
	}
}

func resolverCheck(v *validation.Validator, checker policy.Checker, host string) health.Check {
	return health.Check{
		Name:    "resolver",
		Timeout: v.Timeout(),
		Check: func(ctx context.Context) error {
			_, err := v.Validate(ctx, "http://"+host+"/", checker)
			if validation.IsKind(err, validation.DNSError) || validation.IsKind(err, validation.ParseError) {
				return fmt.Errorf("probe host %s: %w", host, err)
			}
			return nil
		},
	}
}
