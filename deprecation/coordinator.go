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
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/sunset/event"
	"github.com/blinklabs-io/sunset/lifecycle"
	"github.com/blinklabs-io/sunset/notify"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultClientName      = "sunset"
	DefaultWarningInterval = 24 * time.Hour
)

// LoggingMode controls when Enforce emits a message for the current verdict
type LoggingMode int

const (
	// LogOnTransition emits only when the verdict changes, or when a repeated
	// warning is due
	LogOnTransition LoggingMode = iota
	// LogAlways emits the current verdict's message on every call
	LogAlways
)

// EnforceOptions selects how a single Enforce call reports. The zero value
// logs on transitions and dispatches alerts detached.
type EnforceOptions struct {
	Logging  LoggingMode
	Dispatch notify.DispatchMode
}

// AlertNotifier delivers operator alerts
type AlertNotifier interface {
	Notify(ctx context.Context, message string, mode notify.DispatchMode) error
}

type CoordinatorConfig struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	// Notifier is optional; without it alerts are only logged
	Notifier  AlertNotifier
	Lifecycle lifecycle.ShutdownRequester
	// Now is used for warning repeats and defaults to time.Now
	Now           func() time.Time
	ClientName    string
	ClientVersion string
	Policy        Policy
	// WarningInterval repeats the warning while it is in effect. A negative
	// value disables repeats.
	WarningInterval time.Duration
}

// Coordinator applies the deprecation policy to each new chain height. It
// owns the enforcement state for the process: which verdict was last
// reported and whether shutdown has been requested. It is safe for
// concurrent use.
type Coordinator struct {
	config    CoordinatorConfig
	logger    *slog.Logger
	metrics   *coordinatorMetrics
	lastWarn  time.Time
	status    Status
	mu        sync.Mutex
	logged    Verdict
	hasLogged bool
	// shutdownRequested flips to true exactly once per process
	shutdownRequested atomic.Bool
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Lifecycle == nil {
		return nil, errors.New("deprecation coordinator requires a lifecycle")
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.WarningInterval == 0 {
		cfg.WarningInterval = DefaultWarningInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Coordinator{
		config: cfg,
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		c.logger = cfg.Logger
	}
	c.logger = c.logger.With("component", "deprecation")
	c.initMetrics()
	return c, nil
}

// Policy returns the schedule being enforced
func (c *Coordinator) Policy() Policy {
	return c.config.Policy
}

// Status returns the status computed by the most recent Enforce call
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()
	switch status.Verdict {
	case VerdictActive:
		status.Message = c.activeMessage(status.Height)
	case VerdictWarning:
		status.Message = c.warningMessage(status.Height)
	case VerdictDeprecated:
		status.Message = c.deprecatedMessage()
	}
	return status
}

// ShutdownRequested reports whether this coordinator has requested shutdown
func (c *Coordinator) ShutdownRequested() bool {
	return c.shutdownRequested.Load()
}

// Enforce checks height against the policy and acts on the verdict: nothing
// while active, a warning (with alert) when approaching deprecation, and an
// error, alert and shutdown request once deprecated. Shutdown is requested at
// most once, after the message is logged and the alert attempted. Enforce
// never fails; alert failures are logged.
func (c *Coordinator) Enforce(
	ctx context.Context,
	height int64,
	opts EnforceOptions,
) Verdict {
	verdict := c.config.Policy.Evaluate(height)
	c.recordStatus(height, verdict)
	switch verdict {
	case VerdictActive:
		c.enforceActive(height, opts)
	case VerdictWarning:
		c.enforceWarning(ctx, height, opts)
	case VerdictDeprecated:
		c.enforceDeprecated(ctx, height, opts)
	}
	return verdict
}

func (c *Coordinator) recordStatus(height int64, verdict Verdict) {
	remaining := c.config.Policy.BlocksRemaining(height)
	// The gauges are updated with the status so they always describe the
	// same height
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Verdict = verdict
	c.status.Height = height
	c.status.DeprecationHeight = c.config.Policy.DeprecationHeight()
	c.status.BlocksRemaining = remaining
	c.metrics.verdict.Set(float64(verdict))
	c.metrics.chainHeight.Set(float64(height))
	c.metrics.blocksRemaining.Set(float64(remaining))
}

func (c *Coordinator) enforceActive(height int64, opts EnforceOptions) {
	c.mu.Lock()
	c.logged = VerdictActive
	c.hasLogged = true
	c.mu.Unlock()
	if opts.Logging != LogAlways {
		return
	}
	c.emit(slog.LevelInfo, height, VerdictActive, c.activeMessage(height))
}

func (c *Coordinator) enforceWarning(
	ctx context.Context,
	height int64,
	opts EnforceOptions,
) {
	now := c.config.Now()
	c.mu.Lock()
	transition := !c.hasLogged || c.logged != VerdictWarning
	repeat := !transition &&
		c.config.WarningInterval > 0 &&
		now.Sub(c.lastWarn) >= c.config.WarningInterval
	alert := transition || repeat
	if alert {
		c.lastWarn = now
	}
	c.logged = VerdictWarning
	c.hasLogged = true
	c.mu.Unlock()
	if !alert && opts.Logging != LogAlways {
		return
	}
	msg := c.warningMessage(height)
	c.emit(slog.LevelWarn, height, VerdictWarning, msg)
	if !alert {
		// Forced status refreshes are logged only
		return
	}
	c.notify(ctx, msg, opts.Dispatch)
}

func (c *Coordinator) enforceDeprecated(
	ctx context.Context,
	height int64,
	opts EnforceOptions,
) {
	if !c.shutdownRequested.CompareAndSwap(false, true) {
		if opts.Logging == LogAlways {
			c.emit(slog.LevelError, height, VerdictDeprecated, c.deprecatedMessage())
		}
		return
	}
	c.mu.Lock()
	c.logged = VerdictDeprecated
	c.hasLogged = true
	c.mu.Unlock()
	msg := c.deprecatedMessage()
	c.emit(slog.LevelError, height, VerdictDeprecated, msg)
	c.notify(ctx, msg, opts.Dispatch)
	c.metrics.shutdownRequests.Inc()
	if err := c.config.Lifecycle.RequestShutdown(c.shutdownReason()); err != nil {
		if errors.Is(err, lifecycle.ErrShutdownInProgress) {
			c.logger.Debug(
				"shutdown already in progress",
				"height", height,
			)
			return
		}
		c.logger.Error(
			"failed to request shutdown",
			"height", height,
			"error", err,
		)
	}
}

// emit writes msg to the log and the status surfaces
func (c *Coordinator) emit(
	level slog.Level,
	height int64,
	verdict Verdict,
	msg string,
) {
	remaining := c.config.Policy.BlocksRemaining(height)
	c.logger.Log(
		context.Background(),
		level,
		msg,
		"height", height,
		"deprecation_height", c.config.Policy.DeprecationHeight(),
		"blocks_remaining", remaining,
		"verdict", verdict.String(),
	)
	c.metrics.messages.WithLabelValues(levelLabel(level)).Inc()
	status := Status{
		Verdict:           verdict,
		Height:            height,
		DeprecationHeight: c.config.Policy.DeprecationHeight(),
		BlocksRemaining:   remaining,
		Message:           msg,
	}
	if c.config.EventBus != nil {
		c.config.EventBus.Publish(
			StatusEventType,
			event.NewEvent(StatusEventType, status),
		)
	}
}

func (c *Coordinator) notify(
	ctx context.Context,
	msg string,
	mode notify.DispatchMode,
) {
	if c.config.Notifier == nil {
		return
	}
	if err := c.config.Notifier.Notify(ctx, msg, mode); err != nil {
		c.metrics.notifyFailures.Inc()
		c.logger.Warn(
			"alert notification failed",
			"mode", mode.String(),
			"error", err,
		)
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	default:
		return "info"
	}
}
