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

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// MessagePlaceholder is replaced by the alert message in a command template
const MessagePlaceholder = "%s"

// safeChars lists the characters kept when a message is substituted into a
// shell command
const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .,;-_/:?@()"

// waitDelay is how long we wait for output pipes after the command is killed
const waitDelay = time.Second

// CommandError describes a command that ran but did not succeed
type CommandError struct {
	Stderr   string
	ExitCode int
	TimedOut bool
}

func (e *CommandError) Error() string {
	if e.TimedOut {
		return "alert command timed out and was killed"
	}
	msg := fmt.Sprintf("alert command exited with status %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// CommandTarget runs an operator supplied shell command for each alert
type CommandTarget struct {
	template string
}

// NewCommandTarget returns a target for the given command template. Every
// occurrence of %s in the template is replaced by the sanitized, single-quoted
// alert message.
func NewCommandTarget(template string) *CommandTarget {
	return &CommandTarget{template: template}
}

func (c *CommandTarget) Name() string {
	return "command"
}

// Command returns the shell command line that would run for message
func (c *CommandTarget) Command(message string) string {
	quoted := "'" + SanitizeMessage(message) + "'"
	return strings.ReplaceAll(c.template, MessagePlaceholder, quoted)
}

func (c *CommandTarget) Send(ctx context.Context, message string) error {
	cmd := shellCommand(ctx, c.Command(message))
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &CommandError{TimedOut: true, ExitCode: -1}
		}
		return fmt.Errorf("alert command cancelled and killed: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return fmt.Errorf("failed to run alert command: %w", err)
}

// SanitizeMessage strips every character that is not safe to place inside a
// single-quoted shell argument
func SanitizeMessage(message string) string {
	var sb strings.Builder
	sb.Grow(len(message))
	for _, r := range message {
		if strings.ContainsRune(safeChars, r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
