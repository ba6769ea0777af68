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

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

// StateSource names the kind of state an execution context is built from.
type StateSource string

const (
	LiveState     StateSource = "live"
	SnapState     StateSource = "snap"
	ExistingState StateSource = "existing"
)

// Config holds the options of all commands.
type Config struct {
	AppName     string
	CommandName string

	LogLevel              string
	Runtime               Runtime
	ExecutorPlugin        string
	WasmExecution         string
	HeapPages             uint64
	ExportProof           string
	OverwriteStateVersion *state.StateVersion
	MemoryProfile         string

	Uri               string
	StateRootCheck    bool
	TryState          chain.TryStateSelect
	KeepConnection    bool
	ValidateStateRoot bool
	ProgressInterval  time.Duration
	DeltaLogging      string

	Checks                  chain.UpgradeCheckSelect
	NoWeightWarnings        bool
	NoIdempotencyChecks     bool
	DisableSpecVersionCheck bool

	StateSource    StateSource
	At             *common.Hash
	Pallets        []string
	HashedPrefixes [][]byte
	ChildTree      bool
	SnapshotPath   string
}

// NewConfig creates the configuration of the command run by ctx.
func NewConfig(ctx *cli.Context) (*Config, error) {
	cfg := createConfigFromFlags(ctx)

	var err error
	if cfg.Runtime, err = ParseRuntime(getFlagValue(ctx, RuntimeFlag).(string)); err != nil {
		return nil, err
	}
	if v := getFlagValue(ctx, OverwriteStateVersionFlag).(string); v != "" {
		version, err := ParseStateVersion(v)
		if err != nil {
			return nil, err
		}
		cfg.OverwriteStateVersion = &version
	}
	if cfg.TryState, err = ParseTryStateSelect(getFlagValue(ctx, TryStateFlag).(string)); err != nil {
		return nil, err
	}
	if cfg.Checks, err = ParseUpgradeCheckSelect(getFlagValue(ctx, ChecksFlag).(string)); err != nil {
		return nil, err
	}
	if cfg.At, err = ParseBlockHash(getFlagValue(ctx, AtFlag).(string)); err != nil {
		return nil, err
	}
	if cfg.HashedPrefixes, err = ParseHashedPrefixes(getFlagValue(ctx, PrefixFlag).([]string)); err != nil {
		return nil, err
	}

	switch cfg.CommandName {
	case string(SnapState):
		cfg.StateSource = SnapState
	case string(ExistingState):
		cfg.StateSource = ExistingState
	default:
		cfg.StateSource = LiveState
	}
	return cfg, nil
}

// createConfigFromFlags returns Config instance with user specified values or the default ones
func createConfigFromFlags(ctx *cli.Context) *Config {
	cfg := &Config{
		AppName:     ctx.App.HelpName,
		CommandName: ctx.Command.Name,

		LogLevel:                getFlagValue(ctx, logger.LogLevelFlag).(string),
		ExecutorPlugin:          getFlagValue(ctx, ExecutorFlag).(string),
		WasmExecution:           getFlagValue(ctx, WasmExecutionFlag).(string),
		HeapPages:               getFlagValue(ctx, HeapPagesFlag).(uint64),
		ExportProof:             getFlagValue(ctx, ExportProofFlag).(string),
		MemoryProfile:           getFlagValue(ctx, MemoryProfileFlag).(string),
		Uri:                     getFlagValue(ctx, UriFlag).(string),
		StateRootCheck:          getFlagValue(ctx, StateRootCheckFlag).(bool),
		KeepConnection:          getFlagValue(ctx, KeepConnectionFlag).(bool),
		ValidateStateRoot:       getFlagValue(ctx, ValidateStateRootFlag).(bool),
		ProgressInterval:        getFlagValue(ctx, ProgressIntervalFlag).(time.Duration),
		DeltaLogging:            getFlagValue(ctx, DeltaLoggingFlag).(string),
		NoWeightWarnings:        getFlagValue(ctx, NoWeightWarningsFlag).(bool),
		NoIdempotencyChecks:     getFlagValue(ctx, NoIdempotencyChecksFlag).(bool),
		DisableSpecVersionCheck: getFlagValue(ctx, DisableSpecVersionCheckFlag).(bool),
		Pallets:                 getFlagValue(ctx, PalletFlag).([]string),
		ChildTree:               getFlagValue(ctx, ChildTreeFlag).(bool),
		SnapshotPath:            getFlagValue(ctx, SnapshotPathFlag).(string),
	}
	return cfg
}

// getFlagValue returns value specified by user if flag is declared by the
// command or one of its parents, otherwise return default flag value
func getFlagValue(ctx *cli.Context, flag interface{}) interface{} {
	for _, c := range ctx.Lineage() {
		if c.Command == nil {
			continue
		}
		for _, cmdFlag := range c.Command.Flags {
			switch f := flag.(type) {
			case cli.IntFlag:
				if cmdFlag.Names()[0] == f.Name {
					return c.Int(f.Name)
				}
			case cli.Uint64Flag:
				if cmdFlag.Names()[0] == f.Name {
					return c.Uint64(f.Name)
				}
			case cli.StringFlag:
				if cmdFlag.Names()[0] == f.Name {
					return c.String(f.Name)
				}
			case cli.PathFlag:
				if cmdFlag.Names()[0] == f.Name {
					return c.Path(f.Name)
				}
			case cli.BoolFlag:
				if cmdFlag.Names()[0] == f.Name {
					return c.Bool(f.Name)
				}
			case cli.DurationFlag:
				if cmdFlag.Names()[0] == f.Name {
					return c.Duration(f.Name)
				}
			case cli.StringSliceFlag:
				if cmdFlag.Names()[0] == f.Name {
					return c.StringSlice(f.Name)
				}
			}
		}
	}

	// If flag not found, return the default value of the flag
	switch f := flag.(type) {
	case cli.IntFlag:
		return f.Value
	case cli.Uint64Flag:
		return f.Value
	case cli.StringFlag:
		return f.Value
	case cli.PathFlag:
		return f.Value
	case cli.BoolFlag:
		return f.Value
	case cli.DurationFlag:
		return f.Value
	case cli.StringSliceFlag:
		if f.Value == nil {
			return []string{}
		}
		return f.Value.Value()
	}

	return nil
}
