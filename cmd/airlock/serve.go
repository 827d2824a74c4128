// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tenuo-ai/airlock/pkg/health"
	"github.com/tenuo-ai/airlock/pkg/logging"
	"github.com/tenuo-ai/airlock/pkg/metrics"
	"github.com/tenuo-ai/airlock/pkg/policy"
	"github.com/tenuo-ai/airlock/pkg/validation"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(fs afero.Fs) *cobra.Command {
	var (
		listenAddress string
		probeHost     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation API over HTTP",
		Long:  "Serves GET /v1/validate?url=... returning the validation result as JSON, plus /healthz and /metrics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(cmd, fs)
			if err != nil {
				return err
			}
			checker, err := settings.Policy()
			if err != nil {
				return err
			}

			log := logging.GetLogger().With("service", "airlock")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)

			if err := metrics.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize metrics: %w", err)
			}
			if addr := settings.MetricsListenAddress(); addr != "" {
				log.Info("Serving metrics", "address", addr)
				g.Go(func() error { return metrics.StartServer(ctx, addr) })
			}

			var lc net.ListenConfig
			ln, err := lc.Listen(ctx, "tcp", listenAddress)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listenAddress, err)
			}
			log.Info("Serving validation API", "address", ln.Addr().String(), "policy", checker.Base().String())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", ln.Addr())

			g.Go(func() error {
				return metrics.ServeHandler(ctx, ln, newAPIHandler(settings.Validator(), checker, probeHost))
			})

			if err := g.Wait(); err != nil {
				log.Error("Server failed", "error", err)
				return err
			}
			log.Info("Shutdown complete.")
			return nil
		},
	}
	cmd.Flags().StringVar(&listenAddress, "listen-address", "127.0.0.1:8080", "Address the validation API listens on.")
	cmd.Flags().StringVar(&probeHost, "health-probe-host", "", "Hostname /healthz resolves to confirm DNS works. Empty skips the check.")
	return cmd
}

func newAPIHandler(v *validation.Validator, checker policy.Checker, probeHost string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/validate", func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("url")
		if raw == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing url query parameter"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), v.Timeout())
		defer cancel()
		res, err := v.Validate(ctx, raw, checker)
		writeJSON(w, statusFor(err), newReport(raw, res, err))
	})
	mux.Handle("GET /healthz", health.NewHandler(health.NewChecker(v, checker, probeHost)))
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	kind, _ := validation.KindOf(err)
	switch kind {
	case validation.ParseError:
		return http.StatusBadRequest
	case validation.HostnameBlocked, validation.SSRFBlocked:
		return http.StatusForbidden
	case validation.DNSError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func joinAddr(ip string, port uint16) string {
	return net.JoinHostPort(ip, strconv.Itoa(int(port)))
}
