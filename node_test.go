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

package sunset_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/sunset"
	"github.com/blinklabs-io/sunset/deprecation"
	"github.com/blinklabs-io/sunset/internal/test/testutil"
	"github.com/blinklabs-io/sunset/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(
		m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func testPolicy() deprecation.Policy {
	return deprecation.Policy{
		ApproxReleaseHeight:   1000,
		WeeksUntilDeprecation: 1,
		BlocksPerWeek:         100,
		WarnLimit:             10,
	}
}

// newRPCServer serves getblockcount from height
func newRPCServer(t *testing.T, height *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Id uint64 `json:"id"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": height.Load(),
				"error":  nil,
				"id":     req.Id,
			})
		},
	))
	t.Cleanup(server.Close)
	return server
}

// alertSink records webhook alerts
type alertSink struct {
	mu       sync.Mutex
	payloads []notify.WebhookPayload
}

func newAlertSink(t *testing.T) (*alertSink, *httptest.Server) {
	t.Helper()
	sink := &alertSink{}
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var payload notify.WebhookPayload
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			sink.mu.Lock()
			sink.payloads = append(sink.payloads, payload)
			sink.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		},
	))
	t.Cleanup(server.Close)
	return sink, server
}

func (s *alertSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]string, 0, len(s.payloads))
	for _, payload := range s.payloads {
		ret = append(ret, payload.Message)
	}
	return ret
}

func newNode(
	t *testing.T,
	rpcURL string,
	opts ...sunset.ConfigOptionFunc,
) (*sunset.Node, *testutil.LogCapture) {
	t.Helper()
	logs, logger := testutil.NewLogCapture()
	baseOpts := []sunset.ConfigOptionFunc{
		sunset.WithLogger(logger),
		sunset.WithPrometheusRegistry(prometheus.NewRegistry()),
		sunset.WithPolicy(testPolicy()),
		sunset.WithClient("testnode", "1.2.3"),
		sunset.WithRPC(rpcURL, "user", "pass"),
		sunset.WithPollInterval(10 * time.Millisecond),
		sunset.WithShutdownTimeout(5 * time.Second),
	}
	n, err := sunset.New(sunset.NewConfig(append(baseOpts, opts...)...))
	require.NoError(t, err)
	return n, logs
}

func runNode(
	ctx context.Context,
	n *sunset.Node,
) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	return errCh
}

func TestNodeShutsDownWhenDeprecated(t *testing.T) {
	var height atomic.Int64
	height.Store(1100)
	rpc := newRPCServer(t, &height)
	sink, webhook := newAlertSink(t)

	n, logs := newNode(t, rpc.URL, sunset.WithWebhook(webhook.URL, nil))
	errCh := runNode(context.Background(), n)

	err := testutil.RequireReceive(t, errCh, 5*time.Second, "node exit")
	require.ErrorIs(t, err, sunset.ErrShutdownRequested)
	assert.Contains(t, err.Error(), "testnode 1.2.3 is deprecated as of block height 1100")

	// The startup alert is sent inline, so it has arrived before shutdown
	messages := sink.messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "deprecated as of block height 1100")

	errs := logs.Records(t, "ERROR")
	require.Len(t, errs, 1)
	assert.Equal(t, "deprecation", errs[0]["component"])
	assert.Equal(t, deprecation.VerdictDeprecated, n.Status().Deprecation.Verdict)
}

func TestNodeWarnsThenShutsDown(t *testing.T) {
	var height atomic.Int64
	height.Store(1085)
	rpc := newRPCServer(t, &height)
	sink, webhook := newAlertSink(t)

	n, logs := newNode(t, rpc.URL, sunset.WithWebhook(webhook.URL, nil))
	errCh := runNode(context.Background(), n)

	// Startup reports the current status even while active
	testutil.WaitForCondition(t, func() bool {
		return len(logs.Find(t, "This version is up to date. It will be deprecated at block height 1100 (15 blocks remaining).")) == 1
	}, 5*time.Second, "startup status")
	assert.Empty(t, sink.messages())

	height.Store(1095)
	testutil.WaitForCondition(t, func() bool {
		return n.Status().Deprecation.Verdict == deprecation.VerdictWarning
	}, 5*time.Second, "warning verdict")
	testutil.WaitForCondition(t, func() bool {
		return len(sink.messages()) == 1
	}, 5*time.Second, "warning alert")
	assert.Contains(t, sink.messages()[0], "5 blocks remaining")

	height.Store(1101)
	err := testutil.RequireReceive(t, errCh, 5*time.Second, "node exit")
	require.ErrorIs(t, err, sunset.ErrShutdownRequested)
	// The detached deprecation alert is drained during shutdown
	assert.Len(t, sink.messages(), 2)
	assert.Len(t, logs.Records(t, "WARN"), 1)
}

func TestNodeNotEnforcedOffMainnet(t *testing.T) {
	var height atomic.Int64
	height.Store(5000)
	rpc := newRPCServer(t, &height)

	n, logs := newNode(t, rpc.URL, sunset.WithNetwork(sunset.NetworkTestnet))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := runNode(ctx, n)

	testutil.WaitForCondition(t, func() bool {
		tip := n.Status().TipHeight
		return tip != nil && *tip == 5000
	}, 5*time.Second, "tip observed")
	testutil.RequireNoReceive(t, errCh, 50*time.Millisecond, "node keeps running")
	status := n.Status()
	assert.False(t, status.Enforcing)
	assert.Equal(t, "deprecation is only enforced on mainnet", status.Disabled)
	assert.Len(t, logs.Find(t, "deprecation is only enforced on mainnet"), 1)
	assert.Empty(t, logs.Records(t, "ERROR"))

	cancel()
	require.NoError(t, testutil.RequireReceive(t, errCh, 5*time.Second, "node exit"))
}

func TestNodeDeprecationOverride(t *testing.T) {
	var height atomic.Int64
	height.Store(5000)
	rpc := newRPCServer(t, &height)

	n, logs := newNode(t, rpc.URL, sunset.WithDisableDeprecation("1.2.3"))
	errCh := runNode(context.Background(), n)

	testutil.WaitForCondition(t, func() bool {
		return n.Status().TipHeight != nil
	}, 5*time.Second, "tip observed")
	testutil.RequireNoReceive(t, errCh, 50*time.Millisecond, "node keeps running")
	assert.Len(t, logs.Find(t, "deprecation disabled for version 1.2.3"), 1)

	require.NoError(t, n.Stop())
	require.NoError(t, testutil.RequireReceive(t, errCh, 5*time.Second, "node exit"))
}

func TestNodeDeprecationOverrideMismatch(t *testing.T) {
	var height atomic.Int64
	height.Store(1100)
	rpc := newRPCServer(t, &height)

	n, logs := newNode(t, rpc.URL, sunset.WithDisableDeprecation("1.2.2"))
	assert.Len(t, logs.Find(t, "disableDeprecation does not match the running version, ignoring"), 1)
	assert.True(t, n.Status().Enforcing)

	errCh := runNode(context.Background(), n)
	err := testutil.RequireReceive(t, errCh, 5*time.Second, "node exit")
	require.ErrorIs(t, err, sunset.ErrShutdownRequested)
}

func TestNodeStopIdempotent(t *testing.T) {
	var height atomic.Int64
	height.Store(10)
	rpc := newRPCServer(t, &height)

	n, _ := newNode(t, rpc.URL)
	errCh := runNode(context.Background(), n)
	testutil.WaitForCondition(t, func() bool {
		return n.Status().TipHeight != nil
	}, 5*time.Second, "tip observed")
	require.NoError(t, n.Stop())
	require.NoError(t, n.Stop())
	require.NoError(t, testutil.RequireReceive(t, errCh, 5*time.Second, "node exit"))
	testutil.RequireReceive(t, n.Done(), time.Second, "done closed")
	assert.Error(t, n.Run(context.Background()))
}

func TestNodeStatusBeforeRun(t *testing.T) {
	n, _ := newNode(t, "http://127.0.0.1:1")
	status := n.Status()
	assert.True(t, status.Enforcing)
	assert.Nil(t, status.TipHeight)
	assert.Equal(t, int64(1100), status.Deprecation.DeprecationHeight)
	require.NoError(t, n.Stop())
}

func TestNodeReport(t *testing.T) {
	var height atomic.Int64
	height.Store(1050)
	rpc := newRPCServer(t, &height)

	n, logs := newNode(t, rpc.URL)
	const upToDate = "This version is up to date. It will be deprecated at block height 1100 (50 blocks remaining)."
	// Nothing observed yet
	assert.Nil(t, n.Report(context.Background()).TipHeight)
	assert.Empty(t, logs.Find(t, upToDate))

	errCh := runNode(context.Background(), n)
	testutil.WaitForCondition(t, func() bool {
		return len(logs.Find(t, upToDate)) == 1
	}, 5*time.Second, "startup status")

	status := n.Report(context.Background())
	require.NotNil(t, status.TipHeight)
	assert.Equal(t, int64(50), status.Deprecation.BlocksRemaining)
	assert.Len(t, logs.Find(t, upToDate), 2)

	require.NoError(t, n.Stop())
	require.NoError(t, testutil.RequireReceive(t, errCh, 5*time.Second, "node exit"))
}

func TestNodeTracingStdout(t *testing.T) {
	var height atomic.Int64
	height.Store(10)
	rpc := newRPCServer(t, &height)

	n, _ := newNode(
		t,
		rpc.URL,
		sunset.WithTracing(true),
		sunset.WithTracingStdout(true),
	)
	errCh := runNode(context.Background(), n)
	testutil.WaitForCondition(t, func() bool {
		return n.Status().TipHeight != nil
	}, 5*time.Second, "tip observed")
	// Stopping flushes and shuts down the tracer provider
	require.NoError(t, n.Stop())
	require.NoError(t, testutil.RequireReceive(t, errCh, 5*time.Second, "node exit"))
}

func TestNodeTracingSetupFailureStops(t *testing.T) {
	// A pair without a value makes resource detection fail
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment")
	n, _ := newNode(
		t,
		"http://127.0.0.1:1",
		sunset.WithTracing(true),
		sunset.WithTracingStdout(true),
	)
	err := n.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create trace resource")
	testutil.RequireReceive(t, n.Done(), time.Second, "done closed")
	require.NoError(t, n.Stop())
}
