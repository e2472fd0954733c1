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
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/sunset/deprecation"
)

func resetGlobalConfig(t *testing.T) {
	t.Helper()
	globalConfig = defaultConfig()
	// Keep a config file in the real home directory out of the tests
	t.Setenv("HOME", t.TempDir())
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test-sunset.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return tmpFile
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	resetGlobalConfig(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	expected := &Config{
		Network:               "mainnet",
		AlertTimeout:          "10s",
		AlertGrace:            "5s",
		RpcUrl:                "http://127.0.0.1:8232",
		PollInterval:          "10s",
		WarningInterval:       "24h",
		ShutdownTimeout:       "30s",
		BindAddr:              "127.0.0.1",
		MetricsPort:           12799,
		ApproxReleaseHeight:   deprecation.DefaultApproxReleaseHeight,
		WeeksUntilDeprecation: 52,
		WarnWeeks:             2,
		BlockSpacing:          "2m",
	}

	if !reflect.DeepEqual(cfg, expected) {
		t.Errorf(
			"config mismatch without file:\nExpected: %+v\nGot:      %+v",
			expected,
			cfg,
		)
	}
}

func TestLoad_CompareFullStruct(t *testing.T) {
	resetGlobalConfig(t)
	tmpFile := writeConfigFile(t, `
network: "testnet"
disableDeprecation: "1.2.3"
alertNotify: "echo %s >> /var/log/alerts"
alertWebhookUrl: "https://alerts.example.com/hook"
alertWebhookHeaders:
  Authorization: "Bearer abc"
alertTimeout: "3s"
alertGrace: "1s"
rpcUrl: "http://10.0.0.5:18232"
rpcUser: "rpc"
rpcPassword: "secret"
pollInterval: "30s"
warningInterval: "6h"
shutdownTimeout: "15s"
bindAddr: "0.0.0.0"
metricsPort: 9100
tracing: true
tracingStdout: true
approxReleaseHeight: 2000000
weeksUntilDeprecation: 16
warnWeeks: 4
blockSpacing: "75s"
`)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	expected := &Config{
		Network:               "testnet",
		DisableDeprecation:    "1.2.3",
		AlertNotify:           "echo %s >> /var/log/alerts",
		AlertWebhookUrl:       "https://alerts.example.com/hook",
		AlertWebhookHeaders:   map[string]string{"Authorization": "Bearer abc"},
		AlertTimeout:          "3s",
		AlertGrace:            "1s",
		RpcUrl:                "http://10.0.0.5:18232",
		RpcUser:               "rpc",
		RpcPassword:           "secret",
		PollInterval:          "30s",
		WarningInterval:       "6h",
		ShutdownTimeout:       "15s",
		BindAddr:              "0.0.0.0",
		MetricsPort:           9100,
		Tracing:               true,
		TracingStdout:         true,
		ApproxReleaseHeight:   2000000,
		WeeksUntilDeprecation: 16,
		WarnWeeks:             4,
		BlockSpacing:          "75s",
	}
	assert.Equal(t, expected, cfg)
}

func TestLoad_ConfigSection(t *testing.T) {
	resetGlobalConfig(t)
	tmpFile := writeConfigFile(t, `
config:
  network: "regtest"
  pollInterval: "1s"
`)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "regtest", cfg.Network)
	assert.Equal(t, "1s", cfg.PollInterval)
	// Unset values keep their defaults
	assert.Equal(t, "24h", cfg.WarningInterval)
	assert.Equal(t, "http://127.0.0.1:8232", cfg.RpcUrl)
	assert.Equal(t, uint(12799), cfg.MetricsPort)
	assert.Equal(t, deprecation.DefaultWeeksUntilDeprecation, cfg.WeeksUntilDeprecation)
	assert.Equal(t, deprecation.DefaultWarnWeeks, cfg.WarnWeeks)
	assert.Equal(t, "30s", cfg.ShutdownTimeout)
}

func TestLoad_ConfigSectionOverridesRpc(t *testing.T) {
	resetGlobalConfig(t)
	tmpFile := writeConfigFile(t, `
config:
  network: "regtest"
  rpcUrl: "http://127.0.0.1:1"
  metricsPort: 9100
`)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "regtest", cfg.Network)
	assert.Equal(t, "http://127.0.0.1:1", cfg.RpcUrl)
	assert.Equal(t, uint(9100), cfg.MetricsPort)
	assert.Equal(t, deprecation.DefaultWeeksUntilDeprecation, cfg.WeeksUntilDeprecation)
	assert.Equal(t, "10s", cfg.PollInterval)
}

func TestLoad_ConfigSectionInvalid(t *testing.T) {
	resetGlobalConfig(t)
	tmpFile := writeConfigFile(t, `
config:
  metricsPort: "not a port"
`)
	_, err := LoadConfig(tmpFile)
	require.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	resetGlobalConfig(t)
	tmpFile := writeConfigFile(t, `
network: "testnet"
rpcUser: "file-user"
`)
	t.Setenv("SUNSET_NETWORK", "mainnet")
	t.Setenv("SUNSET_RPC_USER", "env-user")
	t.Setenv("SUNSET_DISABLE_DEPRECATION", "9.9.9")
	t.Setenv("SUNSET_APPROX_RELEASE_HEIGHT", "3000000")

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, "env-user", cfg.RpcUser)
	assert.Equal(t, "9.9.9", cfg.DisableDeprecation)
	assert.Equal(t, int64(3000000), cfg.ApproxReleaseHeight)
	assert.Same(t, cfg, GetConfig())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "network: [mainnet"},
		{name: "bad duration", content: `pollInterval: "soon"`},
		{name: "empty rpc url", content: `rpcUrl: ""`},
		{name: "bad schedule", content: "weeksUntilDeprecation: 0"},
		{name: "warn window too long", content: "approxReleaseHeight: 1\nweeksUntilDeprecation: 1\nwarnWeeks: 3"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resetGlobalConfig(t)
			_, err := LoadConfig(writeConfigFile(t, test.content))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	resetGlobalConfig(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPolicy(t *testing.T) {
	cfg := defaultConfig()
	cfg.ApproxReleaseHeight = 1942000
	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, deprecation.DefaultPolicy(), policy)

	cfg.BlockSpacing = "150s"
	policy, err = cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, int64(4032), policy.BlocksPerWeek)
	assert.Equal(t, int64(1942000+52*4032), policy.DeprecationHeight())
}

func TestParseDurations(t *testing.T) {
	cfg := defaultConfig()
	cfg.WarningInterval = "-1s"
	durations, err := cfg.ParseDurations()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, durations.PollInterval)
	assert.Equal(t, -time.Second, durations.WarningInterval)
	assert.Equal(t, 2*time.Minute, durations.BlockSpacing)
	assert.Equal(t, 30*time.Second, durations.ShutdownTimeout)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
