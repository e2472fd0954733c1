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

package event

// BlockConnectedEventType is the event type for a new best chain tip
const BlockConnectedEventType = EventType("block.connected")

// BlockConnectedEvent is emitted when the best chain tip advances. When the
// tip moves by several blocks between observations, only the newest height is
// reported.
type BlockConnectedEvent struct {
	// Height is the best chain height after the block was connected
	Height int64
	// Initial is set on the first event after startup
	Initial bool
}
