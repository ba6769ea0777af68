// Copyright 2025 Sonic Labs
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/executor"
	"github.com/0xsoniclabs/tryruntime/executor/extension/logger"
	"github.com/0xsoniclabs/tryruntime/executor/extension/profiler"
	"github.com/0xsoniclabs/tryruntime/executor/extension/tracker"
	"github.com/0xsoniclabs/tryruntime/executor/extension/validator"
	"github.com/0xsoniclabs/tryruntime/rpc"
	"github.com/0xsoniclabs/tryruntime/sandbox"
	"github.com/0xsoniclabs/tryruntime/statesource"
	"github.com/urfave/cli/v2"
)

var FollowChainCmd = cli.Command{
	Action: RunFollowChain,
	Name:   "follow-chain",
	Usage:  "Executes every finalized block of a live chain on top of a local copy of its state",
	Flags: append([]cli.Flag{
		&config.UriFlag,
		&config.StateRootCheckFlag,
		&config.TryStateFlag,
		&config.KeepConnectionFlag,

		// Extensions
		&config.ValidateStateRootFlag,
		&config.ProgressIntervalFlag,
		&config.DeltaLoggingFlag,
		&config.MemoryProfileFlag,
	}, runtimeFlags...),
	Description: `
The follow-chain command subscribes to the finalized heads of the node and
executes each reported block. The state is downloaded once, at the parent
of the first block, and then evolves with the executed blocks.`,
}

// RunFollowChain follows the chain of the configured node.
func RunFollowChain(ctx *cli.Context) (err error) {
	cfg, err := config.NewConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.ExportProof != "" {
		if err = os.MkdirAll(cfg.ExportProof, 0o755); err != nil {
			return fmt.Errorf("cannot create proof directory; %w", err)
		}
	}

	sb, err := openSandbox(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sb.Close())
	}()

	blocks := rpc.NewBlockSource(cfg.Uri, cfg.KeepConnection)
	defer func() {
		err = errors.Join(err, blocks.Close())
	}()

	states := statesource.NewBuilder(cfg, sb, statesource.Checks{TryRuntime: true})
	return runFollowChain(ctx.Context, cfg, blocks, states, sb)
}

func runFollowChain(ctx context.Context, cfg *config.Config, blocks executor.BlockSource, states executor.StateProvider, sb sandbox.Sandbox) error {
	return executor.NewFollowChain(cfg, blocks, states, sb, followChainExtensions(cfg)).Run(ctx)
}

func followChainExtensions(cfg *config.Config) []executor.Extension {
	// order of extensions has to be maintained, the validator
	// has to fail a block before it is logged
	return []executor.Extension{
		tracker.MakeFinalityGapDetector(cfg),
		validator.MakeStateRootValidator(cfg),
		logger.MakeDeltaLogger(cfg),
		logger.MakeProgressLogger(cfg),
		profiler.MakeMemoryProfiler(cfg),
	}
}
