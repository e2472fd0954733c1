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

package testutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// LogRecord is one decoded JSON log line
type LogRecord map[string]any

// Message returns the record's msg attribute
func (r LogRecord) Message() string {
	msg, _ := r["msg"].(string)
	return msg
}

// LogCapture collects JSON log output from concurrent writers
type LogCapture struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// NewLogCapture returns a capture and a debug-level logger writing to it
func NewLogCapture() (*LogCapture, *slog.Logger) {
	c := &LogCapture{}
	logger := slog.New(
		slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	return c, logger
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Records returns the captured records at the given level, or every record
// when level is empty
func (c *LogCapture) Records(t *testing.T, level string) []LogRecord {
	t.Helper()
	c.mu.Lock()
	data := c.buf.String()
	c.mu.Unlock()
	var ret []LogRecord
	for line := range strings.SplitSeq(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var rec LogRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if level == "" || rec["level"] == level {
			ret = append(ret, rec)
		}
	}
	return ret
}

// Find returns the captured records whose message is msg
func (c *LogCapture) Find(t *testing.T, msg string) []LogRecord {
	t.Helper()
	var ret []LogRecord
	for _, rec := range c.Records(t, "") {
		if rec.Message() == msg {
			ret = append(ret, rec)
		}
	}
	return ret
}
