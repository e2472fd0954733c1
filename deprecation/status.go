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

import (
	"fmt"

	"github.com/blinklabs-io/sunset/event"
)

// StatusEventType is published whenever the coordinator emits a message to
// the operator
const StatusEventType event.EventType = "deprecation.status"

// Status is the operator facing view of the deprecation schedule
type Status struct {
	Verdict           Verdict `json:"verdict"`
	Height            int64   `json:"height"`
	DeprecationHeight int64   `json:"deprecationHeight"`
	BlocksRemaining   int64   `json:"blocksRemaining"`
	Message           string  `json:"message,omitempty"`
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*v = VerdictActive
	case "warning":
		*v = VerdictWarning
	case "deprecated":
		*v = VerdictDeprecated
	default:
		return fmt.Errorf("unknown verdict: %q", string(text))
	}
	return nil
}
