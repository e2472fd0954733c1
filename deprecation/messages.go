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

package deprecation

import "fmt"

// OverrideKey is the configuration key that disables deprecation for a
// specific client version
const OverrideKey = "disableDeprecation"

func (c *Coordinator) upgradeAdvice() string {
	return fmt.Sprintf(
		"You should upgrade to the latest version of %s.",
		c.config.ClientName,
	)
}

func (c *Coordinator) overrideHint(verb string) string {
	if c.config.ClientVersion == "" {
		return ""
	}
	return fmt.Sprintf(
		" To %s deprecation for this version, set %s: %s.",
		verb,
		OverrideKey,
		c.config.ClientVersion,
	)
}

func (c *Coordinator) activeMessage(height int64) string {
	return fmt.Sprintf(
		"This version is up to date. It will be deprecated at block height %d (%d blocks remaining).",
		c.config.Policy.DeprecationHeight(),
		c.config.Policy.BlocksRemaining(height),
	)
}

func (c *Coordinator) warningMessage(height int64) string {
	return fmt.Sprintf(
		"This version will be deprecated at block height %d (%d blocks remaining), and will automatically shut down. %s",
		c.config.Policy.DeprecationHeight(),
		c.config.Policy.BlocksRemaining(height),
		c.upgradeAdvice(),
	) + c.overrideHint("delay")
}

func (c *Coordinator) deprecatedMessage() string {
	return fmt.Sprintf(
		"This version has been deprecated as of block height %d. %s",
		c.config.Policy.DeprecationHeight(),
		c.upgradeAdvice(),
	) + c.overrideHint("disable")
}

func (c *Coordinator) shutdownReason() string {
	return fmt.Sprintf(
		"%s %s is deprecated as of block height %d",
		c.config.ClientName,
		c.config.ClientVersion,
		c.config.Policy.DeprecationHeight(),
	)
}
