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

package sunset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/sunset/deprecation"
	"github.com/blinklabs-io/sunset/event"
	"github.com/blinklabs-io/sunset/follower"
	"github.com/blinklabs-io/sunset/lifecycle"
	"github.com/blinklabs-io/sunset/notify"
)

// ErrShutdownRequested is returned by Run when the node stopped itself
// because the running version is deprecated
var ErrShutdownRequested = errors.New("shutdown requested")

// Status describes the node for the status endpoint
type Status struct {
	Network     string             `json:"network"`
	Client      string             `json:"client"`
	Version     string             `json:"version"`
	Enforcing   bool               `json:"enforcing"`
	Disabled    string             `json:"disabled,omitempty"`
	TipHeight   *int64             `json:"tipHeight,omitempty"`
	Deprecation deprecation.Status `json:"deprecation"`
}

type Node struct {
	eventBus      *event.EventBus
	lifecycle     *lifecycle.Lifecycle
	notifier      *notify.Notifier
	coordinator   *deprecation.Coordinator
	follower      *follower.Follower
	runCtx        context.Context
	shutdownFuncs []func(context.Context) error
	config        Config
	disabled      string
	done          chan struct{}
	shutdownOnce  sync.Once
	shutdownErr   error
	runMu         sync.Mutex
	running       bool
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
		done:   make(chan struct{}),
	}
	if n.config.logger == nil {
		n.config.logger = NewConfig().logger
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n.eventBus = event.NewEventBus(n.config.promRegistry, n.config.logger)
	n.lifecycle = lifecycle.New(n.config.logger)
	n.notifier = notify.New(notify.Config{
		PromRegistry: n.config.promRegistry,
		Logger:       n.config.logger,
		Targets:      n.notifyTargets(),
		Timeout:      n.config.notifyTimeout,
	})
	coordinator, err := deprecation.NewCoordinator(
		deprecation.CoordinatorConfig{
			PromRegistry:    n.config.promRegistry,
			Logger:          n.config.logger,
			EventBus:        n.eventBus,
			Notifier:        n.notifier,
			Lifecycle:       n.lifecycle,
			ClientName:      n.config.clientName,
			ClientVersion:   n.config.clientVersion,
			Policy:          n.config.policy,
			WarningInterval: n.config.warningInterval,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n.coordinator = coordinator
	f, err := follower.New(follower.FollowerConfig{
		PromRegistry: n.config.promRegistry,
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		URL:          n.config.rpcURL,
		Username:     n.config.rpcUser,
		Password:     n.config.rpcPassword,
		PollInterval: n.config.pollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n.follower = f
	n.disabled = n.enforcementDisabledReason()
	return n, nil
}

func (n *Node) notifyTargets() []notify.Target {
	var targets []notify.Target
	if n.config.alertCommand != "" {
		targets = append(
			targets,
			notify.NewCommandTarget(n.config.alertCommand),
		)
	}
	if n.config.webhookURL != "" {
		targets = append(
			targets,
			notify.NewWebhookTarget(
				n.config.webhookURL,
				n.config.clientName,
				n.config.webhookHeaders,
				nil,
			),
		)
	}
	return targets
}

// enforcementDisabledReason returns why deprecation is not enforced, or an
// empty string when it is
func (n *Node) enforcementDisabledReason() string {
	if n.config.network != NetworkMainnet {
		return "deprecation is only enforced on " + NetworkMainnet
	}
	if n.config.disableDeprecation == "" {
		return ""
	}
	if n.config.disableDeprecation == n.config.clientVersion {
		return fmt.Sprintf(
			"deprecation disabled for version %s",
			n.config.clientVersion,
		)
	}
	n.config.logger.Warn(
		fmt.Sprintf(
			"%s does not match the running version, ignoring",
			deprecation.OverrideKey,
		),
		"component", "node",
		"value", n.config.disableDeprecation,
		"version", n.config.clientVersion,
	)
	return ""
}

// Run follows the chain and enforces the deprecation schedule until ctx is
// done, Stop is called, or the running version is deprecated. In the last
// case the returned error wraps ErrShutdownRequested.
func (n *Node) Run(ctx context.Context) error {
	n.runMu.Lock()
	if n.running {
		n.runMu.Unlock()
		return errors.New("node is already running")
	}
	n.running = true
	n.runMu.Unlock()
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return errors.Join(err, n.Stop())
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	n.runCtx = runCtx
	if n.disabled != "" {
		n.config.logger.Info(
			n.disabled,
			"component", "node",
			"network", n.config.network,
		)
	} else {
		n.eventBus.SubscribeFunc(
			event.BlockConnectedEventType,
			n.handleBlockConnected,
		)
		n.config.logger.Info(
			"deprecation enforcement enabled",
			"component", "node",
			"deprecation_height", n.config.policy.DeprecationHeight(),
			"warn_height", n.config.policy.WarnHeight(),
		)
	}
	if err := n.follower.Start(runCtx); err != nil {
		return errors.Join(err, n.Stop())
	}
	select {
	case <-n.lifecycle.Requested():
		err := fmt.Errorf(
			"%w: %s",
			ErrShutdownRequested,
			n.lifecycle.Reason(),
		)
		return errors.Join(err, n.Stop())
	case <-runCtx.Done():
		return n.Stop()
	case <-n.done:
		return n.Stop()
	}
}

func (n *Node) handleBlockConnected(evt event.Event) {
	data, ok := evt.Data.(event.BlockConnectedEvent)
	if !ok {
		return
	}
	opts := deprecation.EnforceOptions{}
	if data.Initial {
		// Report the schedule once at startup and finish any alert before
		// the node starts running
		opts.Logging = deprecation.LogAlways
		opts.Dispatch = notify.DispatchInline
	}
	n.coordinator.Enforce(n.runCtx, data.Height, opts)
}

// Status returns the current node and deprecation status
func (n *Node) Status() Status {
	status := Status{
		Network:     n.config.network,
		Client:      n.config.clientName,
		Version:     n.config.clientVersion,
		Enforcing:   n.disabled == "",
		Disabled:    n.disabled,
		Deprecation: n.coordinator.Status(),
	}
	if height, ok := n.follower.Height(); ok {
		status.TipHeight = &height
	}
	if status.Deprecation.DeprecationHeight == 0 {
		status.Deprecation.DeprecationHeight = n.config.policy.DeprecationHeight()
	}
	return status
}

// Report re-logs the deprecation status for the current tip height, then
// returns the node status. It does nothing extra when enforcement is disabled
// or no height has been observed yet.
func (n *Node) Report(ctx context.Context) Status {
	if n.disabled == "" {
		if height, ok := n.follower.Height(); ok {
			n.coordinator.Enforce(
				ctx,
				height,
				deprecation.EnforceOptions{Logging: deprecation.LogAlways},
			)
		}
	}
	return n.Status()
}

// Lifecycle returns the shutdown coordinator used by the node
func (n *Node) Lifecycle() *lifecycle.Lifecycle {
	return n.lifecycle
}

func (n *Node) Stop() error {
	n.shutdownOnce.Do(func() {
		n.shutdownErr = n.shutdown()
	})
	return n.shutdownErr
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := defaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop observing new heights
	n.config.logger.Debug("shutdown phase 1: stopping follower", "component", "node")

	if n.follower != nil {
		n.follower.Stop()
	}

	// Phase 2: Give detached alerts a chance to finish
	n.config.logger.Debug("shutdown phase 2: draining alerts", "component", "node")

	notifyGrace := defaultNotifyGrace
	if n.config.notifyGrace > 0 {
		notifyGrace = n.config.notifyGrace
	}
	graceCtx, graceCancel := context.WithTimeout(ctx, notifyGrace)
	if waitErr := n.notifier.Wait(graceCtx); waitErr != nil {
		n.config.logger.Warn(
			"alerts still running at shutdown",
			"component", "node",
			"error", waitErr,
		)
	}
	graceCancel()

	// Phase 3: Stop event delivery
	n.config.logger.Debug("shutdown phase 3: stopping event bus", "component", "node")

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources", "component", "node")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}

// Done returns a channel that is closed once the node has shut down
func (n *Node) Done() <-chan struct{} {
	return n.done
}
