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

// Package notify delivers operator alerts to externally configured targets,
// such as a shell command template or a webhook.
//
// Alerts can be dispatched inline, bounded by a timeout, or detached. A
// detached alert runs on its own goroutine that the caller never joins. The
// Notifier tracks those goroutines so that a shutdown sequence can give them
// a bounded grace period with Wait.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTimeout = 10 * time.Second

	tracerName = "github.com/blinklabs-io/sunset/notify"
)

// DispatchMode selects how Notify runs the configured targets
type DispatchMode int

const (
	// DispatchDetached runs targets on a detached goroutine and returns at once
	DispatchDetached DispatchMode = iota
	// DispatchInline runs targets on the calling goroutine, bounded by the timeout
	DispatchInline
)

func (m DispatchMode) String() string {
	switch m {
	case DispatchDetached:
		return "detached"
	case DispatchInline:
		return "inline"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Target is a single alert destination
type Target interface {
	Name() string
	Send(ctx context.Context, message string) error
}

type Config struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	Targets      []Target
	// Timeout bounds every target invocation, inline or detached
	Timeout time.Duration
}

type Notifier struct {
	config  Config
	logger  *slog.Logger
	metrics struct {
		sent   *prometheus.CounterVec
		failed *prometheus.CounterVec
	}
	inflight sync.WaitGroup
}

func New(cfg Config) *Notifier {
	n := &Notifier{
		config: cfg,
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		n.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		n.logger = cfg.Logger
	}
	if n.config.Timeout <= 0 {
		n.config.Timeout = DefaultTimeout
	}
	// Init metrics
	promautoFactory := promauto.With(cfg.PromRegistry)
	n.metrics.sent = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sunset_notify_sent_total",
			Help: "total alerts delivered, by target",
		},
		[]string{"target"},
	)
	n.metrics.failed = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sunset_notify_failed_total",
			Help: "total alerts that failed to deliver, by target",
		},
		[]string{"target"},
	)
	return n
}

// Enabled reports whether any alert target is configured
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.config.Targets) > 0
}

// Notify sends message to every configured target. With no targets it does
// nothing. In detached mode it always returns nil and failures are logged
// from the detached goroutine. In inline mode it returns the joined target
// errors.
func (n *Notifier) Notify(
	ctx context.Context,
	message string,
	mode DispatchMode,
) error {
	if !n.Enabled() {
		return nil
	}
	if mode == DispatchDetached {
		n.inflight.Add(1)
		go func() {
			defer n.inflight.Done()
			// Detached alerts must outlive the triggering call
			if err := n.sendAll(context.WithoutCancel(ctx), message); err != nil {
				n.logger.Warn(
					"alert notification failed",
					"component", "notify",
					"mode", mode.String(),
					"error", err,
				)
			}
		}()
		return nil
	}
	return n.sendAll(ctx, message)
}

// Wait blocks until all detached notifications finish or ctx is done
func (n *Notifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	doneCh := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight notifications: %w", ctx.Err())
	}
}

func (n *Notifier) sendAll(ctx context.Context, message string) error {
	var err error
	for _, target := range n.config.Targets {
		if sendErr := n.send(ctx, target, message); sendErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("%s: %w", target.Name(), sendErr),
			)
		}
	}
	return err
}

func (n *Notifier) send(
	ctx context.Context,
	target Target,
	message string,
) error {
	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "notify.send")
	defer span.End()
	span.SetAttributes(attribute.String("notify.target", target.Name()))
	start := time.Now()
	err := target.Send(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.metrics.failed.WithLabelValues(target.Name()).Inc()
		return err
	}
	n.metrics.sent.WithLabelValues(target.Name()).Inc()
	n.logger.Debug(
		"alert delivered",
		"component", "notify",
		"target", target.Name(),
		"duration", time.Since(start),
	)
	return nil
}
