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
	"os/signal"
	"strings"
	"syscall"

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/sandbox"
	"github.com/urfave/cli/v2"
)

// TryRuntimeApp data structure
var TryRuntimeApp = cli.App{
	Name:      "try-runtime",
	HelpName:  "try-runtime",
	Usage:     "Executes a runtime against live or snapshotted chain state",
	Copyright: "(c) 2025 Sonic Labs",
	Flags: []cli.Flag{
		&logger.LogLevelFlag,
	},
	Commands: []*cli.Command{
		&FollowChainCmd,
		&OnRuntimeUpgradeCmd,
		&CreateSnapshotCmd,
	},
}

// runtimeFlags are shared by all commands executing a runtime.
var runtimeFlags = []cli.Flag{
	&config.RuntimeFlag,
	&config.ExecutorFlag,
	&config.WasmExecutionFlag,
	&config.HeapPagesFlag,
	&config.ExportProofFlag,
	&config.OverwriteStateVersionFlag,
}

// normalizeArgs rewrites a --checks flag given without a value into
// --checks=all, so that the following argument is not taken as its value.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg != "--checks" && arg != "-checks" {
			out = append(out, arg)
			continue
		}
		if i+1 < len(args) {
			if _, err := config.ParseUpgradeCheckSelect(args[i+1]); err == nil && !strings.HasPrefix(args[i+1], "-") {
				out = append(out, arg)
				continue
			}
		}
		out = append(out, "--checks=all")
	}
	return out
}

// openSandbox loads the executor plugin configured for the command.
func openSandbox(cfg *config.Config) (sandbox.Sandbox, error) {
	method, err := sandbox.ParseExecutionMethod(cfg.WasmExecution)
	if err != nil {
		return nil, err
	}
	return sandbox.Open(cfg.ExecutorPlugin, sandbox.Options{HeapPages: cfg.HeapPages, Method: method})
}

// main implements try-runtime cli.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := TryRuntimeApp.RunContext(ctx, normalizeArgs(os.Args))
	interrupted := ctx.Err() != nil
	stop()

	if err != nil && !(interrupted && errors.Is(err, context.Canceled)) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
