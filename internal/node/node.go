// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blinklabs-io/sunset"
	"github.com/blinklabs-io/sunset/deprecation"
	"github.com/blinklabs-io/sunset/internal/config"
	"github.com/blinklabs-io/sunset/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()
	listenAddr := net.JoinHostPort(
		cfg.BindAddr,
		strconv.FormatUint(uint64(cfg.MetricsPort), 10),
	)
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to start metrics listener: %w", err)
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return run(signalCtx, cfg, logger, registry, listener)
}

// NewNode builds a node from the loaded configuration
func NewNode(
	cfg *config.Config,
	logger *slog.Logger,
	registry prometheus.Registerer,
) (*sunset.Node, error) {
	durations, err := cfg.ParseDurations()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	return sunset.New(
		sunset.NewConfig(
			sunset.WithLogger(logger),
			sunset.WithPrometheusRegistry(registry),
			sunset.WithPolicy(policy),
			sunset.WithClient(deprecation.DefaultClientName, version.Version),
			sunset.WithNetwork(cfg.Network),
			sunset.WithDisableDeprecation(cfg.DisableDeprecation),
			sunset.WithAlertCommand(cfg.AlertNotify),
			sunset.WithWebhook(cfg.AlertWebhookUrl, cfg.AlertWebhookHeaders),
			sunset.WithNotifyTimeout(durations.AlertTimeout),
			sunset.WithNotifyGrace(durations.AlertGrace),
			sunset.WithRPC(cfg.RpcUrl, cfg.RpcUser, cfg.RpcPassword),
			sunset.WithPollInterval(durations.PollInterval),
			sunset.WithWarningInterval(durations.WarningInterval),
			sunset.WithShutdownTimeout(durations.ShutdownTimeout),
			sunset.WithTracing(cfg.Tracing),
			sunset.WithTracingStdout(cfg.TracingStdout),
		),
	)
}

func run(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *prometheus.Registry,
	listener net.Listener,
) error {
	durations, err := cfg.ParseDurations()
	if err != nil {
		listener.Close()
		return err
	}
	shutdownTimeout := durations.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	n, err := NewNode(cfg, logger, registry)
	if err != nil {
		listener.Close()
		return err
	}
	metricsServer := &http.Server{
		Handler:           newMux(n, registry),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info(
		"serving prometheus metrics and status on "+listener.Addr().String(),
		"component", "node",
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.Run(gctx)
	})
	g.Go(func() error {
		if err := metricsServer.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Stop serving once the node has stopped for any reason
		select {
		case <-gctx.Done():
		case <-n.Done():
		}
		if ctx.Err() != nil {
			logger.Info("signal received, initiating graceful shutdown", "component", "node")
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err, "component", "node")
		}
		return nil
	})
	err = g.Wait()
	if errors.Is(err, sunset.ErrShutdownRequested) {
		// A deprecation shutdown is a clean exit
		logger.Info("node stopped", "reason", err.Error(), "component", "node")
		return nil
	}
	if err != nil {
		logger.Error("node error", "error", err, "component", "node")
		return err
	}
	logger.Info("shutdown complete", "component", "node")
	return nil
}

func newMux(n *sunset.Node, registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		status := n.Status()
		if r.URL.Query().Get("log") == "true" {
			status = n.Report(r.Context())
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}
