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

package config

import (
	"time"

	"github.com/urfave/cli/v2"
)

// shared
var (
	RuntimeFlag = cli.StringFlag{
		Name:  "runtime",
		Usage: "path to a wasm blob compiled with try-runtime, or 'existing' to keep the code found in the state",
		Value: "existing",
	}
	ExecutorFlag = cli.PathFlag{
		Name:     "executor",
		Usage:    "path to the executor plugin running the runtime",
		Required: true,
	}
	WasmExecutionFlag = cli.StringFlag{
		Name:  "wasm-execution",
		Usage: "wasm execution method: compiled or interpreted-i-know-what-i-do",
		Value: "compiled",
	}
	HeapPagesFlag = cli.Uint64Flag{
		Name:  "heap-pages",
		Usage: "number of 64KB pages available to the runtime, 0 uses the value stored in the state",
	}
	ExportProofFlag = cli.PathFlag{
		Name:  "export-proof",
		Usage: "file (or directory when following the chain) the storage proof is exported to",
	}
	OverwriteStateVersionFlag = cli.StringFlag{
		Name:  "overwrite-state-version",
		Usage: "state version (0 or 1) used instead of the one reported by the runtime",
	}
	MemoryProfileFlag = cli.PathFlag{
		Name:  "memory-profile",
		Usage: "file the heap profile is written to at the end of the run",
	}
)

// follow-chain
var (
	UriFlag = cli.StringFlag{
		Name:    "uri",
		Aliases: []string{"u"},
		Usage:   "websocket url of the node",
		Value:   "ws://localhost:9944",
	}
	StateRootCheckFlag = cli.BoolFlag{
		Name:  "state-root-check",
		Usage: "let the runtime check the state root of every block",
	}
	TryStateFlag = cli.StringFlag{
		Name:  "try-state",
		Usage: "try-state targets: all, none, rr-<n> or a comma separated list of pallets",
		Value: "all",
	}
	KeepConnectionFlag = cli.BoolFlag{
		Name:  "keep-connection",
		Usage: "reuse a single connection for fetching blocks",
	}
	ValidateStateRootFlag = cli.BoolFlag{
		Name:  "validate-state-root",
		Usage: "compare the state root after every block with the one in its header",
	}
	ProgressIntervalFlag = cli.DurationFlag{
		Name:  "progress-interval",
		Usage: "interval between progress reports, 0 disables them",
		Value: 15 * time.Second,
	}
	DeltaLoggingFlag = cli.PathFlag{
		Name:  "delta-log",
		Usage: "file the storage changes of every executed block are written to",
	}
)

// on-runtime-upgrade
var (
	ChecksFlag = cli.StringFlag{
		Name:  "checks",
		Usage: "checks run by the migration: none, all, pre-and-post or try-state",
		Value: "pre-and-post",
	}
	NoWeightWarningsFlag = cli.BoolFlag{
		Name:  "no-weight-warnings",
		Usage: "do not fail when the migration consumes more weight than a block allows",
	}
	NoIdempotencyChecksFlag = cli.BoolFlag{
		Name:  "no-idempotency-checks",
		Usage: "do not run the migration a second time to check that it is idempotent",
	}
	DisableSpecVersionCheckFlag = cli.BoolFlag{
		Name:  "disable-spec-version-check",
		Usage: "do not compare spec name and version of the new runtime with the on-chain one",
	}
)

// state sources
var (
	AtFlag = cli.StringFlag{
		Name:  "at",
		Usage: "hash of the block the state is taken at, defaults to the finalized head",
	}
	PalletFlag = cli.StringSliceFlag{
		Name:  "pallet",
		Usage: "only download the storage of the given pallets",
	}
	PrefixFlag = cli.StringSliceFlag{
		Name:  "prefix",
		Usage: "only download keys with the given hex encoded prefixes",
	}
	ChildTreeFlag = cli.BoolFlag{
		Name:  "child-tree",
		Usage: "also download the default child tries",
		Value: true,
	}
	SnapshotPathFlag = cli.PathFlag{
		Name:     "path",
		Aliases:  []string{"p"},
		Usage:    "path of the snapshot file",
		Required: true,
	}
)
