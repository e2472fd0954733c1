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

// Package follower tracks the best chain height of an external node over its
// JSON-RPC interface and publishes tip changes on the event bus.
package follower

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/sunset/event"
	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultPollInterval     = 10 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultRetryMaxInterval = 5 * time.Minute
)

var (
	ErrMissingURL     = errors.New("follower requires an RPC URL")
	ErrAlreadyStarted = errors.New("follower already started")
)

type FollowerConfig struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	HTTPClient   *http.Client
	URL          string
	Username     string
	Password     string
	PollInterval time.Duration
	// RequestTimeout bounds each RPC call
	RequestTimeout time.Duration
	// RetryMaxInterval caps the delay between polls while the node is failing
	RetryMaxInterval time.Duration
}

// Follower polls a node for its best chain height
type Follower struct {
	config    FollowerConfig
	metrics   *followerMetrics
	backoff   *backoff.ExponentialBackOff
	cancel    context.CancelFunc
	doneCh    chan struct{}
	requestId atomic.Uint64
	mu        sync.Mutex
	tipMu     sync.Mutex
	height    int64
	hasHeight bool
}

func New(cfg FollowerConfig) (*Follower, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "follower")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = DefaultRetryMaxInterval
	}
	if cfg.RetryMaxInterval < cfg.PollInterval {
		cfg.RetryMaxInterval = cfg.PollInterval
	}
	f := &Follower{
		config: cfg,
	}
	f.backoff = backoff.NewExponentialBackOff()
	f.backoff.InitialInterval = cfg.PollInterval
	f.backoff.MaxInterval = cfg.RetryMaxInterval
	f.initMetrics()
	return f, nil
}

// Start begins polling in the background. The first poll happens immediately.
func (f *Follower) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.doneCh != nil {
		return ErrAlreadyStarted
	}
	pollCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.doneCh = make(chan struct{})
	go f.run(pollCtx, f.doneCh)
	f.config.Logger.Info(
		"following chain tip",
		"url", f.config.URL,
		"poll_interval", f.config.PollInterval.String(),
	)
	return nil
}

// Stop cancels any in-flight poll and waits for the poll loop to exit
func (f *Follower) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	doneCh := f.doneCh
	f.cancel = nil
	f.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-doneCh
}

// Height returns the last observed chain height
func (f *Follower) Height() (int64, bool) {
	f.tipMu.Lock()
	defer f.tipMu.Unlock()
	return f.height, f.hasHeight
}

func (f *Follower) run(ctx context.Context, doneCh chan struct{}) {
	defer close(doneCh)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		delay := f.config.PollInterval
		if err := f.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = f.backoff.NextBackOff()
			f.config.Logger.Warn(
				"failed to poll chain tip",
				"error", err,
				"retry_in", delay.String(),
			)
		} else {
			f.backoff.Reset()
		}
		timer.Reset(delay)
	}
}

func (f *Follower) poll(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.RequestTimeout)
	defer cancel()
	f.metrics.polls.Inc()
	height, err := f.BlockCount(reqCtx)
	if err != nil {
		f.metrics.pollFailures.Inc()
		return err
	}
	f.metrics.tipHeight.Set(float64(height))
	f.tipMu.Lock()
	prev, hadHeight := f.height, f.hasHeight
	f.height = height
	f.hasHeight = true
	f.tipMu.Unlock()
	switch {
	case !hadHeight || height > prev:
		f.publish(height, !hadHeight)
	case height < prev:
		f.config.Logger.Info(
			"chain tip moved backwards",
			"height", height,
			"previous_height", prev,
		)
	}
	return nil
}

func (f *Follower) publish(height int64, initial bool) {
	f.metrics.tipChanges.Inc()
	f.config.Logger.Debug(
		"chain tip advanced",
		"height", height,
		"initial", initial,
	)
	if f.config.EventBus == nil {
		return
	}
	f.config.EventBus.Publish(
		event.BlockConnectedEventType,
		event.NewEvent(
			event.BlockConnectedEventType,
			event.BlockConnectedEvent{
				Height:  height,
				Initial: initial,
			},
		),
	)
}
