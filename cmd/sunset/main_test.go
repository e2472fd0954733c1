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

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/sunset/deprecation"
	"github.com/blinklabs-io/sunset/internal/node"
)

func TestPrintCheckResult(t *testing.T) {
	result := node.CheckResult{
		Verdict:           deprecation.VerdictWarning,
		Height:            1092,
		DeprecationHeight: 1100,
		WarnHeight:        1090,
		BlocksRemaining:   8,
	}

	var buf bytes.Buffer
	require.NoError(t, printCheckResult(&buf, result, false))
	assert.Contains(t, buf.String(), "verdict:            warning\n")
	assert.Contains(t, buf.String(), "blocks remaining:   8\n")

	buf.Reset()
	require.NoError(t, printCheckResult(&buf, result, true))
	var decoded node.CheckResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, result, decoded)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := versionCommand()
	cmd.SetOut(&buf)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), programName+" ")
	assert.Contains(t, buf.String(), "release height: ")
}
