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

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/executor"
	"github.com/0xsoniclabs/tryruntime/sandbox"
	"github.com/0xsoniclabs/tryruntime/statesource"
	"github.com/urfave/cli/v2"
)

// stateSourceFlags select a remote state.
var stateSourceFlags = []cli.Flag{
	&config.UriFlag,
	&config.AtFlag,
	&config.PalletFlag,
	&config.PrefixFlag,
	&config.ChildTreeFlag,
}

var OnRuntimeUpgradeCmd = cli.Command{
	Name:  "on-runtime-upgrade",
	Usage: "Executes the migrations of a runtime against a state and reports their weight",
	Flags: append([]cli.Flag{
		&config.ChecksFlag,
		&config.NoWeightWarningsFlag,
		&config.NoIdempotencyChecksFlag,
		&config.DisableSpecVersionCheckFlag,
	}, runtimeFlags...),
	Subcommands: []*cli.Command{
		{
			Action: RunOnRuntimeUpgrade,
			Name:   string(config.LiveState),
			Usage:  "downloads the state from a live node",
			Flags:  stateSourceFlags,
		},
		{
			Action: RunOnRuntimeUpgrade,
			Name:   string(config.SnapState),
			Usage:  "reads the state from a snapshot file",
			Flags:  []cli.Flag{&config.SnapshotPathFlag},
		},
		{
			Action: RunOnRuntimeUpgrade,
			Name:   string(config.ExistingState),
			Usage:  "downloads the complete best state of a live node",
			Flags:  []cli.Flag{&config.UriFlag},
		},
	},
	Description: `
The on-runtime-upgrade command takes one of the state sources live, snap or
existing as subcommand. Options of on-runtime-upgrade have to precede it.`,
}

// RunOnRuntimeUpgrade dry runs the migrations of the configured runtime.
func RunOnRuntimeUpgrade(ctx *cli.Context) (err error) {
	cfg, err := config.NewConfig(ctx)
	if err != nil {
		return err
	}
	source, err := statesource.FromConfig(cfg)
	if err != nil {
		return err
	}

	sb, err := openSandbox(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sb.Close())
	}()

	states := statesource.NewBuilder(cfg, sb, statesource.Checks{
		TryRuntime:  true,
		SpecVersion: !cfg.DisableSpecVersionCheck,
	})
	return runOnRuntimeUpgrade(ctx.Context, cfg, source, states, sb)
}

func runOnRuntimeUpgrade(ctx context.Context, cfg *config.Config, source statesource.Source, states executor.StateProvider, sb sandbox.Sandbox) error {
	return executor.NewOnRuntimeUpgrade(cfg, source, states, sb).Run(ctx)
}
