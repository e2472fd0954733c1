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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/blinklabs-io/sunset/internal/node"
	"github.com/spf13/cobra"
)

var checkFlags = struct {
	height int64
	json   bool
}{}

func printCheckResult(w io.Writer, result node.CheckResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err := fmt.Fprintf(
		w,
		"height:             %d\nverdict:            %s\nwarning height:     %d\ndeprecation height: %d\nblocks remaining:   %d\n",
		result.Height,
		result.Verdict,
		result.WarnHeight,
		result.DeprecationHeight,
		result.BlocksRemaining,
	)
	return err
}

func checkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report the deprecation verdict for a block height",
		Long: "Report the deprecation verdict for a block height without " +
			"alerting or stopping anything. The current chain height is " +
			"fetched from the configured node when --height is not given.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := configFromCommand(cmd)
			logger := newLogger()
			result, err := node.Check(cmd.Context(), cfg, logger, checkFlags.height)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			if err := printCheckResult(cmd.OutOrStdout(), result, checkFlags.json); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().
		Int64Var(&checkFlags.height, "height", -1, "block height to check (default: current chain height)")
	cmd.Flags().
		BoolVar(&checkFlags.json, "json", false, "output JSON")
	return cmd
}
