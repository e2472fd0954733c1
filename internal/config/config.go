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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/sunset/deprecation"
	"github.com/blinklabs-io/sunset/internal/version"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "sunset.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultPollInterval    = "10s"
	DefaultWarningInterval = "24h"
	DefaultAlertTimeout    = "10s"
	DefaultAlertGrace      = "5s"
	DefaultBlockSpacing    = "2m"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// tempConfig keeps the optional config section undecoded so that only the
// keys it actually sets are applied over the defaults
type tempConfig struct {
	Config yaml.Node `yaml:"config,omitempty"`
}

type Config struct {
	Network            string `yaml:"network"`
	DisableDeprecation string `yaml:"disableDeprecation" split_words:"true"`
	// AlertNotify is a shell command run for each alert; %s is replaced by
	// the quoted alert message
	AlertNotify         string            `yaml:"alertNotify"         split_words:"true"`
	AlertWebhookUrl     string            `yaml:"alertWebhookUrl"     split_words:"true"`
	AlertWebhookHeaders map[string]string `yaml:"alertWebhookHeaders" split_words:"true"`
	AlertTimeout        string            `yaml:"alertTimeout"        split_words:"true"`
	AlertGrace          string            `yaml:"alertGrace"          split_words:"true"`
	RpcUrl              string            `yaml:"rpcUrl"              split_words:"true"`
	RpcUser             string            `yaml:"rpcUser"             split_words:"true"`
	RpcPassword         string            `yaml:"rpcPassword"         split_words:"true"`
	PollInterval        string            `yaml:"pollInterval"        split_words:"true"`
	WarningInterval     string            `yaml:"warningInterval"     split_words:"true"`
	ShutdownTimeout     string            `yaml:"shutdownTimeout"     split_words:"true"`
	BindAddr            string            `yaml:"bindAddr"            split_words:"true"`
	MetricsPort         uint              `yaml:"metricsPort"         split_words:"true"`
	Tracing             bool              `yaml:"tracing"`
	TracingStdout       bool              `yaml:"tracingStdout"       split_words:"true"`
	// Deprecation schedule. A zero release height uses the one built in.
	ApproxReleaseHeight   int64  `yaml:"approxReleaseHeight"   split_words:"true"`
	WeeksUntilDeprecation int64  `yaml:"weeksUntilDeprecation" split_words:"true"`
	WarnWeeks             int64  `yaml:"warnWeeks"             split_words:"true"`
	BlockSpacing          string `yaml:"blockSpacing"          split_words:"true"`
}

// Durations holds the parsed duration settings
type Durations struct {
	AlertTimeout    time.Duration
	AlertGrace      time.Duration
	PollInterval    time.Duration
	WarningInterval time.Duration
	ShutdownTimeout time.Duration
	BlockSpacing    time.Duration
}

var globalConfig = defaultConfig()

func defaultConfig() *Config {
	return &Config{
		Network:               "mainnet",
		AlertTimeout:          DefaultAlertTimeout,
		AlertGrace:            DefaultAlertGrace,
		RpcUrl:                "http://127.0.0.1:8232",
		PollInterval:          DefaultPollInterval,
		WarningInterval:       DefaultWarningInterval,
		ShutdownTimeout:       DefaultShutdownTimeout,
		BindAddr:              "127.0.0.1",
		MetricsPort:           12799,
		WeeksUntilDeprecation: deprecation.DefaultWeeksUntilDeprecation,
		WarnWeeks:             deprecation.DefaultWarnWeeks,
		BlockSpacing:          DefaultBlockSpacing,
	}
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.sunset/sunset.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".sunset", "sunset.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/sunset/sunset.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/sunset/sunset.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		var tempCfg tempConfig
		if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		if !tempCfg.Config.IsZero() {
			// Overlay the config section onto existing defaults
			if err := tempCfg.Config.Decode(globalConfig); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("sunset", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if globalConfig.ApproxReleaseHeight == 0 {
		globalConfig.ApproxReleaseHeight = version.ReleaseHeight()
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks settings that cannot be checked by the YAML and
// environment decoders
func (c *Config) Validate() error {
	if c.RpcUrl == "" {
		return errors.New("rpcUrl must be set")
	}
	if _, err := c.ParseDurations(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// ParseDurations parses the duration settings
func (c *Config) ParseDurations() (Durations, error) {
	var ret Durations
	fields := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{name: "alertTimeout", value: c.AlertTimeout, dest: &ret.AlertTimeout},
		{name: "alertGrace", value: c.AlertGrace, dest: &ret.AlertGrace},
		{name: "pollInterval", value: c.PollInterval, dest: &ret.PollInterval},
		{name: "warningInterval", value: c.WarningInterval, dest: &ret.WarningInterval},
		{name: "shutdownTimeout", value: c.ShutdownTimeout, dest: &ret.ShutdownTimeout},
		{name: "blockSpacing", value: c.BlockSpacing, dest: &ret.BlockSpacing},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil {
			return Durations{}, fmt.Errorf(
				"invalid %s %q: %w",
				field.name,
				field.value,
				err,
			)
		}
		*field.dest = d
	}
	return ret, nil
}

// Policy builds the deprecation schedule from the config
func (c *Config) Policy() (deprecation.Policy, error) {
	durations, err := c.ParseDurations()
	if err != nil {
		return deprecation.Policy{}, err
	}
	spacing := durations.BlockSpacing
	if spacing == 0 {
		spacing = deprecation.DefaultTargetBlockSpacing
	}
	releaseHeight := c.ApproxReleaseHeight
	if releaseHeight == 0 {
		releaseHeight = version.ReleaseHeight()
	}
	return deprecation.NewPolicy(
		releaseHeight,
		c.WeeksUntilDeprecation,
		c.WarnWeeks,
		spacing,
	)
}
