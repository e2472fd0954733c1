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

// Package deprecation ties the lifetime of a node build to chain height.
// A build is Active until it gets within WarnLimit blocks of its deprecation
// height, Warning until it reaches it, and Deprecated from then on.
package deprecation

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultApproxReleaseHeight is the chain height at which this build was cut
	DefaultApproxReleaseHeight int64 = 1942000
	// DefaultWeeksUntilDeprecation is how long a build is supported after release
	DefaultWeeksUntilDeprecation int64 = 52
	// DefaultWarnWeeks is how long before deprecation warnings start
	DefaultWarnWeeks int64 = 2
	// DefaultTargetBlockSpacing is the network's target time between blocks
	DefaultTargetBlockSpacing = 2 * time.Minute

	week = 7 * 24 * time.Hour
)

var ErrInvalidPolicy = errors.New("invalid deprecation policy")

// Verdict is the classification of a height against the deprecation schedule.
// Verdicts are ordered by severity.
type Verdict int

const (
	VerdictActive Verdict = iota
	VerdictWarning
	VerdictDeprecated
)

func (v Verdict) String() string {
	switch v {
	case VerdictActive:
		return "active"
	case VerdictWarning:
		return "warning"
	case VerdictDeprecated:
		return "deprecated"
	default:
		return fmt.Sprintf("unknown(%d)", int(v))
	}
}

// Policy holds the deprecation schedule for the running build. It is
// immutable once constructed.
type Policy struct {
	ApproxReleaseHeight   int64
	WeeksUntilDeprecation int64
	BlocksPerWeek         int64
	WarnLimit             int64
}

// BlocksPerWeekForSpacing returns the number of blocks expected in a week for
// the given target block spacing. A non-positive spacing yields 0.
func BlocksPerWeekForSpacing(spacing time.Duration) int64 {
	if spacing <= 0 {
		return 0
	}
	return int64(week / spacing)
}

// NewPolicy builds a Policy from a release height, a support horizon and a
// warning window, both in weeks, for a network with the given block spacing
func NewPolicy(
	approxReleaseHeight int64,
	weeksUntilDeprecation int64,
	warnWeeks int64,
	targetSpacing time.Duration,
) (Policy, error) {
	blocksPerWeek := BlocksPerWeekForSpacing(targetSpacing)
	if blocksPerWeek > 0 &&
		(warnWeeks > math.MaxInt64/blocksPerWeek ||
			warnWeeks < math.MinInt64/blocksPerWeek) {
		return Policy{}, fmt.Errorf(
			"%w: warning window of %d weeks is out of range",
			ErrInvalidPolicy,
			warnWeeks,
		)
	}
	p := Policy{
		ApproxReleaseHeight:   approxReleaseHeight,
		WeeksUntilDeprecation: weeksUntilDeprecation,
		BlocksPerWeek:         blocksPerWeek,
		WarnLimit:             warnWeeks * blocksPerWeek,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// DefaultPolicy returns the schedule compiled into this build
func DefaultPolicy() Policy {
	blocksPerWeek := BlocksPerWeekForSpacing(DefaultTargetBlockSpacing)
	return Policy{
		ApproxReleaseHeight:   DefaultApproxReleaseHeight,
		WeeksUntilDeprecation: DefaultWeeksUntilDeprecation,
		BlocksPerWeek:         blocksPerWeek,
		WarnLimit:             DefaultWarnWeeks * blocksPerWeek,
	}
}

// Validate checks that the schedule describes a usable, non-empty support window
func (p Policy) Validate() error {
	if p.BlocksPerWeek <= 0 {
		return fmt.Errorf(
			"%w: blocks per week must be positive, got %d",
			ErrInvalidPolicy,
			p.BlocksPerWeek,
		)
	}
	if p.ApproxReleaseHeight < 0 {
		return fmt.Errorf(
			"%w: release height must not be negative, got %d",
			ErrInvalidPolicy,
			p.ApproxReleaseHeight,
		)
	}
	if p.WeeksUntilDeprecation <= 0 {
		return fmt.Errorf(
			"%w: weeks until deprecation must be positive, got %d",
			ErrInvalidPolicy,
			p.WeeksUntilDeprecation,
		)
	}
	// The deprecation height must fit in an int64
	if p.WeeksUntilDeprecation > (math.MaxInt64-p.ApproxReleaseHeight)/p.BlocksPerWeek {
		return fmt.Errorf(
			"%w: %d weeks after release height %d is out of range",
			ErrInvalidPolicy,
			p.WeeksUntilDeprecation,
			p.ApproxReleaseHeight,
		)
	}
	if p.WarnLimit < 0 {
		return fmt.Errorf(
			"%w: warn limit must not be negative, got %d",
			ErrInvalidPolicy,
			p.WarnLimit,
		)
	}
	if p.WarnLimit > p.DeprecationHeight() {
		return fmt.Errorf(
			"%w: warn limit %d exceeds deprecation height %d",
			ErrInvalidPolicy,
			p.WarnLimit,
			p.DeprecationHeight(),
		)
	}
	return nil
}

// DeprecationHeight is the first height at which this build refuses to run
func (p Policy) DeprecationHeight() int64 {
	return p.ApproxReleaseHeight + p.WeeksUntilDeprecation*p.BlocksPerWeek
}

// WarnHeight is the first height at which deprecation warnings are issued
func (p Policy) WarnHeight() int64 {
	return p.DeprecationHeight() - p.WarnLimit
}

// BlocksRemaining returns the number of blocks until the deprecation height.
// It is zero or negative once the build is deprecated.
func (p Policy) BlocksRemaining(height int64) int64 {
	return p.DeprecationHeight() - height
}

// Evaluate classifies a height. It is total: every height, including negative
// ones, maps to exactly one verdict.
func (p Policy) Evaluate(height int64) Verdict {
	switch {
	case height >= p.DeprecationHeight():
		return VerdictDeprecated
	case height >= p.WarnHeight():
		return VerdictWarning
	default:
		return VerdictActive
	}
}
