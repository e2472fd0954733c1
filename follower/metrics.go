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

package follower

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type followerMetrics struct {
	polls        prometheus.Counter
	pollFailures prometheus.Counter
	tipHeight    prometheus.Gauge
	tipChanges   prometheus.Counter
}

func (f *Follower) initMetrics() {
	promautoFactory := promauto.With(f.config.PromRegistry)
	f.metrics = &followerMetrics{}
	f.metrics.polls = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "sunset_follower_polls_total",
		Help: "total chain tip polls",
	})
	f.metrics.pollFailures = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "sunset_follower_poll_failures_total",
		Help: "chain tip polls that failed",
	})
	f.metrics.tipHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "sunset_follower_tip_height",
		Help: "last chain tip height reported by the node",
	})
	f.metrics.tipChanges = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "sunset_follower_tip_changes_total",
		Help: "chain tip advances published to the event bus",
	})
}
