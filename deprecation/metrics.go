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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type coordinatorMetrics struct {
	verdict           prometheus.Gauge
	chainHeight       prometheus.Gauge
	deprecationHeight prometheus.Gauge
	blocksRemaining   prometheus.Gauge
	messages          *prometheus.CounterVec
	notifyFailures    prometheus.Counter
	shutdownRequests  prometheus.Counter
}

func (c *Coordinator) initMetrics() {
	promautoFactory := promauto.With(c.config.PromRegistry)
	c.metrics = &coordinatorMetrics{}
	c.metrics.verdict = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "sunset_deprecation_verdict",
		Help: "current deprecation verdict (0=active, 1=warning, 2=deprecated)",
	})
	c.metrics.chainHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "sunset_deprecation_chain_height",
		Help: "last chain height checked against the deprecation schedule",
	})
	c.metrics.deprecationHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "sunset_deprecation_height",
		Help: "block height at which this version is deprecated",
	})
	c.metrics.blocksRemaining = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "sunset_deprecation_blocks_remaining",
		Help: "blocks remaining until this version is deprecated",
	})
	c.metrics.messages = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sunset_deprecation_messages_total",
			Help: "deprecation messages emitted, by level",
		},
		[]string{"level"},
	)
	c.metrics.notifyFailures = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "sunset_deprecation_notify_failures_total",
			Help: "inline alert notifications that failed",
		},
	)
	c.metrics.shutdownRequests = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "sunset_deprecation_shutdown_requests_total",
			Help: "shutdown requests issued because this version is deprecated",
		},
	)
	c.metrics.deprecationHeight.Set(float64(c.config.Policy.DeprecationHeight()))
}
