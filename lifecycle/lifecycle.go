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

package lifecycle

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrShutdownInProgress is returned when a shutdown was already requested.
// Callers should treat it as benign.
var ErrShutdownInProgress = errors.New("shutdown already in progress")

// ShutdownRequester is the single capability the deprecation policy needs
// from the process: asking for an orderly stop
type ShutdownRequester interface {
	RequestShutdown(reason string) error
}

// Lifecycle records the first shutdown request for the process and signals
// it to whoever owns the run loop
type Lifecycle struct {
	logger    *slog.Logger
	requested chan struct{}
	reason    string
	mu        sync.Mutex
	once      sync.Once
}

func New(logger *slog.Logger) *Lifecycle {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Lifecycle{
		logger:    logger,
		requested: make(chan struct{}),
	}
}

// RequestShutdown asks for an orderly shutdown. Only the first call has any
// effect; later calls return ErrShutdownInProgress.
func (l *Lifecycle) RequestShutdown(reason string) error {
	accepted := false
	l.once.Do(func() {
		l.mu.Lock()
		l.reason = reason
		l.mu.Unlock()
		close(l.requested)
		accepted = true
	})
	if !accepted {
		return ErrShutdownInProgress
	}
	l.logger.Info(
		"shutdown requested",
		"component", "lifecycle",
		"reason", reason,
	)
	return nil
}

// Requested returns a channel that is closed once shutdown is requested
func (l *Lifecycle) Requested() <-chan struct{} {
	return l.requested
}

// Reason returns the reason given with the accepted shutdown request, or an
// empty string if none was made
func (l *Lifecycle) Reason() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}
