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

package node

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/sunset/deprecation"
	"github.com/blinklabs-io/sunset/follower"
	"github.com/blinklabs-io/sunset/internal/config"
)

// CheckResult is the outcome of evaluating a height offline
type CheckResult struct {
	Verdict           deprecation.Verdict `json:"verdict"`
	Height            int64               `json:"height"`
	DeprecationHeight int64               `json:"deprecationHeight"`
	WarnHeight        int64               `json:"warnHeight"`
	BlocksRemaining   int64               `json:"blocksRemaining"`
}

// Check evaluates height against the configured schedule without logging,
// alerting or shutting anything down. A negative height is replaced with the
// current height reported by the configured node.
func Check(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	height int64,
) (CheckResult, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	policy, err := cfg.Policy()
	if err != nil {
		return CheckResult{}, err
	}
	if height < 0 {
		f, err := follower.New(follower.FollowerConfig{
			Logger:   logger,
			URL:      cfg.RpcUrl,
			Username: cfg.RpcUser,
			Password: cfg.RpcPassword,
		})
		if err != nil {
			return CheckResult{}, err
		}
		reqCtx, cancel := context.WithTimeout(ctx, follower.DefaultRequestTimeout)
		defer cancel()
		height, err = f.BlockCount(reqCtx)
		if err != nil {
			return CheckResult{}, fmt.Errorf("failed to get chain height: %w", err)
		}
		logger.Debug(
			"fetched chain height",
			"component", "node",
			"height", height,
		)
	}
	return CheckResult{
		Verdict:           policy.Evaluate(height),
		Height:            height,
		DeprecationHeight: policy.DeprecationHeight(),
		WarnHeight:        policy.WarnHeight(),
		BlocksRemaining:   policy.BlocksRemaining(height),
	}, nil
}
