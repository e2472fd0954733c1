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

package sunset

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/blinklabs-io/sunset/deprecation"
	"github.com/prometheus/client_golang/prometheus"
)

// Networks on which a node can run. Deprecation is only enforced on mainnet.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkRegtest = "regtest"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	defaultNotifyGrace     = 5 * time.Second
)

type Config struct {
	promRegistry       prometheus.Registerer
	logger             *slog.Logger
	policy             deprecation.Policy
	webhookHeaders     map[string]string
	clientName         string
	clientVersion      string
	network            string
	disableDeprecation string
	alertCommand       string
	webhookURL         string
	rpcURL             string
	rpcUser            string
	rpcPassword        string
	pollInterval       time.Duration
	notifyTimeout      time.Duration
	warningInterval    time.Duration
	shutdownTimeout    time.Duration
	notifyGrace        time.Duration
	tracing            bool
	tracingStdout      bool
}

func (n *Node) configValidate() error {
	switch n.config.network {
	case NetworkMainnet, NetworkTestnet, NetworkRegtest:
	default:
		return fmt.Errorf("unknown network name: %s", n.config.network)
	}
	if err := n.config.policy.Validate(); err != nil {
		return err
	}
	if n.config.rpcURL == "" {
		return errors.New("no node RPC URL defined")
	}
	if _, err := url.ParseRequestURI(n.config.rpcURL); err != nil {
		return fmt.Errorf("invalid node RPC URL: %w", err)
	}
	if n.config.webhookURL != "" {
		if _, err := url.ParseRequestURI(n.config.webhookURL); err != nil {
			return fmt.Errorf("invalid webhook URL: %w", err)
		}
	}
	if n.config.alertCommand != "" &&
		!strings.Contains(n.config.alertCommand, "%s") {
		n.config.logger.Warn(
			"alert command has no %s placeholder, alerts will not include the message",
			"command", n.config.alertCommand,
		)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new sunset config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
		policy:     deprecation.DefaultPolicy(),
		clientName: deprecation.DefaultClientName,
		network:    NetworkMainnet,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. The default discards all logs
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. By default, metrics are not registered
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithPolicy specifies the deprecation schedule. The default is deprecation.DefaultPolicy()
func WithPolicy(policy deprecation.Policy) ConfigOptionFunc {
	return func(c *Config) {
		c.policy = policy
	}
}

// WithClient specifies the client name and version used in deprecation messages and matched against the
// disableDeprecation override
func WithClient(name string, version string) ConfigOptionFunc {
	return func(c *Config) {
		if name != "" {
			c.clientName = name
		}
		c.clientVersion = version
	}
}

// WithNetwork specifies the network name. Only mainnet enforces deprecation
func WithNetwork(network string) ConfigOptionFunc {
	return func(c *Config) {
		c.network = network
	}
}

// WithDisableDeprecation disables deprecation enforcement when version matches the running client version
func WithDisableDeprecation(version string) ConfigOptionFunc {
	return func(c *Config) {
		c.disableDeprecation = version
	}
}

// WithAlertCommand specifies a shell command to run for each alert. A %s in the command is replaced with the
// sanitized, single-quoted alert message
func WithAlertCommand(command string) ConfigOptionFunc {
	return func(c *Config) {
		c.alertCommand = command
	}
}

// WithWebhook specifies a URL to post alerts to as JSON, with optional extra request headers
func WithWebhook(url string, headers map[string]string) ConfigOptionFunc {
	return func(c *Config) {
		c.webhookURL = url
		c.webhookHeaders = headers
	}
}

// WithNotifyTimeout bounds each alert delivery
func WithNotifyTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.notifyTimeout = timeout
	}
}

// WithNotifyGrace specifies how long shutdown waits for detached alerts to finish. The default is 5s
func WithNotifyGrace(grace time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.notifyGrace = grace
	}
}

// WithRPC specifies the JSON-RPC endpoint and credentials of the node whose chain height is followed
func WithRPC(url string, user string, password string) ConfigOptionFunc {
	return func(c *Config) {
		c.rpcURL = url
		c.rpcUser = user
		c.rpcPassword = password
	}
}

// WithPollInterval specifies how often the node is polled for its chain height
func WithPollInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.pollInterval = interval
	}
}

// WithWarningInterval specifies how often the deprecation warning is repeated while it is in effect. A negative
// value disables repeats
func WithWarningInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.warningInterval = interval
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
