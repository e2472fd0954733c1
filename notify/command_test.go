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

//go:build !windows

package notify_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/sunset/notify"
)

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text unchanged",
			input:    "Node deprecated at block height 1100.",
			expected: "Node deprecated at block height 1100.",
		},
		{
			name:     "shell metacharacters stripped",
			input:    "x'; rm -rf / #$(id)`",
			expected: "x; rm -rf / (id)",
		},
		{
			name:     "newlines and quotes stripped",
			input:    "line1\n\"line2\"",
			expected: "line1line2",
		},
		{
			name:     "allowed punctuation kept",
			input:    "a-b_c/d:e?f@g(h),i;j",
			expected: "a-b_c/d:e?f@g(h),i;j",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, notify.SanitizeMessage(test.input))
		})
	}
}

func TestCommandTargetCommandLine(t *testing.T) {
	target := notify.NewCommandTarget("logger -t node %s && echo %s")
	// The apostrophe is stripped before quoting
	assert.Equal(
		t,
		"logger -t node 'its down' && echo 'its down'",
		target.Command("it's down"),
	)
}

func TestCommandTargetSendWritesMessage(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "alert.txt")
	target := notify.NewCommandTarget("echo %s > " + outFile)
	require.NoError(t, target.Send(context.Background(), "block 1100 reached"))
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "block 1100 reached\n", string(data))
}

func TestCommandTargetExitCode(t *testing.T) {
	target := notify.NewCommandTarget("echo failing >&2; exit 3")
	err := target.Send(context.Background(), "msg")
	var cmdErr *notify.CommandError
	require.True(t, errors.As(err, &cmdErr), "expected CommandError, got %v", err)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "failing", cmdErr.Stderr)
	assert.False(t, cmdErr.TimedOut)
}

func TestCommandTargetTimeoutKillsProcessGroup(t *testing.T) {
	// The background sleep keeps the process group alive after the shell
	target := notify.NewCommandTarget("sleep 30 & sleep 30")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := target.Send(ctx, "msg")
	var cmdErr *notify.CommandError
	require.True(t, errors.As(err, &cmdErr), "expected CommandError, got %v", err)
	assert.True(t, cmdErr.TimedOut)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandTargetCancelled(t *testing.T) {
	target := notify.NewCommandTarget("sleep 30")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	start := time.Now()
	err := target.Send(ctx, "msg")
	require.ErrorIs(t, err, context.Canceled)
	var cmdErr *notify.CommandError
	assert.False(t, errors.As(err, &cmdErr), "cancellation is not a timeout")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNotifierDetachedSleepingCommandReturnsQuickly(t *testing.T) {
	n := notify.New(notify.Config{
		Targets: []notify.Target{notify.NewCommandTarget("sleep 30")},
		Timeout: 200 * time.Millisecond,
	})
	start := time.Now()
	require.NoError(t, n.Notify(context.Background(), "msg", notify.DispatchDetached))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))
}
