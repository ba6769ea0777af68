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
	"fmt"

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/statesource"
	"github.com/urfave/cli/v2"
)

var CreateSnapshotCmd = cli.Command{
	Action:    RunCreateSnapshot,
	Name:      "create-snapshot",
	Usage:     "Downloads the state of a live node into a snapshot file",
	ArgsUsage: "<path>",
	Flags: append([]cli.Flag{
		&config.OverwriteStateVersionFlag,
	}, stateSourceFlags...),
	Description: `
The create-snapshot command requires one argument: <path>

<path> is the file the snapshot is written to. It can be used as state
source with on-runtime-upgrade snap --path <path>.`,
}

// RunCreateSnapshot writes a snapshot of a live state.
func RunCreateSnapshot(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return fmt.Errorf("create-snapshot command requires exactly 1 argument")
	}
	path := ctx.Args().First()

	cfg, err := config.NewConfig(ctx)
	if err != nil {
		return err
	}
	source, err := statesource.FromConfig(cfg)
	if err != nil {
		return err
	}
	live, ok := source.(statesource.Live)
	if !ok {
		return fmt.Errorf("snapshots can only be created from a live state, got %v", source)
	}

	// downloading does not execute the runtime
	return statesource.NewBuilder(cfg, nil, statesource.Checks{}).CreateSnapshot(ctx.Context, live, path)
}
