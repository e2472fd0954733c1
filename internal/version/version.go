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

package version

import (
	"fmt"
	"strconv"

	"github.com/blinklabs-io/sunset/deprecation"
)

// These are populated at build time via -ldflags -X
var (
	Version    = "devel"
	CommitHash = "none"
	// ApproxReleaseHeight is the expected chain height at release time
	ApproxReleaseHeight = ""
)

func GetVersionString() string {
	if Version == "devel" {
		return fmt.Sprintf("devel (commit %s)", CommitHash)
	}
	return fmt.Sprintf("%s (commit %s)", Version, CommitHash)
}

// ReleaseHeight returns the build's release height, falling back to the
// default schedule when none was set or it does not parse
func ReleaseHeight() int64 {
	if ApproxReleaseHeight == "" {
		return deprecation.DefaultApproxReleaseHeight
	}
	height, err := strconv.ParseInt(ApproxReleaseHeight, 10, 64)
	if err != nil || height < 0 {
		return deprecation.DefaultApproxReleaseHeight
	}
	return height
}
