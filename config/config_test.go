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
	"flag"
	"testing"
	"time"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestGetFlagValue(t *testing.T) {
	// app for testing
	app := cli.NewApp()
	app.Commands = []*cli.Command{
		{
			Name: "testcmd",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "intflag"},
				&cli.Uint64Flag{Name: "uint64flag"},
				&cli.StringFlag{Name: "stringflag"},
				&cli.BoolFlag{Name: "boolflag"},
				&cli.DurationFlag{Name: "durationflag"},
			},
		},
	}

	newContext := func(set *flag.FlagSet) *cli.Context {
		ctx := cli.NewContext(app, set, nil)
		ctx.Command = app.Commands[0]
		return ctx
	}

	testCases := []struct {
		name          string
		setupFlags    func() *cli.Context
		flagToTest    interface{}
		expectedValue interface{}
	}{
		{
			name: "IntFlag value",
			setupFlags: func() *cli.Context {
				set := flag.NewFlagSet("test", 0)
				set.Int("intflag", 42, "")
				return newContext(set)
			},
			flagToTest:    cli.IntFlag{Name: "intflag"},
			expectedValue: 42,
		},
		{
			name: "Uint64Flag value",
			setupFlags: func() *cli.Context {
				set := flag.NewFlagSet("test", 0)
				set.Uint64("uint64flag", 100, "")
				return newContext(set)
			},
			flagToTest:    cli.Uint64Flag{Name: "uint64flag"},
			expectedValue: uint64(100),
		},
		{
			name: "StringFlag value",
			setupFlags: func() *cli.Context {
				set := flag.NewFlagSet("test", 0)
				set.String("stringflag", "test-string", "")
				return newContext(set)
			},
			flagToTest:    cli.StringFlag{Name: "stringflag"},
			expectedValue: "test-string",
		},
		{
			name: "BoolFlag value",
			setupFlags: func() *cli.Context {
				set := flag.NewFlagSet("test", 0)
				set.Bool("boolflag", true, "")
				return newContext(set)
			},
			flagToTest:    cli.BoolFlag{Name: "boolflag"},
			expectedValue: true,
		},
		{
			name: "DurationFlag value",
			setupFlags: func() *cli.Context {
				set := flag.NewFlagSet("test", 0)
				set.Duration("durationflag", time.Minute, "")
				return newContext(set)
			},
			flagToTest:    cli.DurationFlag{Name: "durationflag"},
			expectedValue: time.Minute,
		},
		{
			name: "Default value of undeclared flag",
			setupFlags: func() *cli.Context {
				return newContext(flag.NewFlagSet("test", 0))
			},
			flagToTest:    cli.StringFlag{Name: "otherflag", Value: "default"},
			expectedValue: "default",
		},
		{
			name: "Default value of undeclared slice flag",
			setupFlags: func() *cli.Context {
				return newContext(flag.NewFlagSet("test", 0))
			},
			flagToTest:    cli.StringSliceFlag{Name: "sliceflag"},
			expectedValue: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := tc.setupFlags()
			assert.Equal(t, tc.expectedValue, getFlagValue(ctx, tc.flagToTest))
		})
	}
}

// runCommand runs args against an app mirroring the try-runtime command
// tree and returns the config created by the innermost command.
func runCommand(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var cfg *Config
	var cfgErr error
	action := func(ctx *cli.Context) error {
		cfg, cfgErr = NewConfig(ctx)
		return nil
	}
	stateFlags := []cli.Flag{&UriFlag, &AtFlag, &PalletFlag, &PrefixFlag, &ChildTreeFlag}
	app := &cli.App{
		Name:     "try-runtime",
		HelpName: "try-runtime",
		Flags:    []cli.Flag{&logger.LogLevelFlag},
		Commands: []*cli.Command{
			{
				Name:   "follow-chain",
				Action: action,
				Flags: []cli.Flag{
					&RuntimeFlag, &ExecutorFlag, &ExportProofFlag, &OverwriteStateVersionFlag,
					&UriFlag, &StateRootCheckFlag, &TryStateFlag, &KeepConnectionFlag,
					&ValidateStateRootFlag, &ProgressIntervalFlag, &DeltaLoggingFlag,
				},
			},
			{
				Name: "on-runtime-upgrade",
				Flags: []cli.Flag{
					&RuntimeFlag, &ExecutorFlag, &ChecksFlag, &NoWeightWarningsFlag,
					&NoIdempotencyChecksFlag, &DisableSpecVersionCheckFlag,
				},
				Subcommands: []*cli.Command{
					{Name: "live", Action: action, Flags: stateFlags},
					{Name: "snap", Action: action, Flags: []cli.Flag{&SnapshotPathFlag}},
					{Name: "existing", Action: action, Flags: []cli.Flag{&UriFlag}},
				},
			},
		},
	}
	require.NoError(t, app.Run(append([]string{"try-runtime"}, args...)))
	return cfg, cfgErr
}

func TestNewConfig_FollowChain(t *testing.T) {
	cfg, err := runCommand(t, "follow-chain",
		"--executor", "/tmp/sandbox.so",
		"--uri", "ws://node:9944",
		"--try-state", "rr-3",
		"--state-root-check",
		"--keep-connection",
		"--overwrite-state-version", "0",
		"--progress-interval", "1m",
		"--delta-log", "/tmp/delta.log",
	)
	require.NoError(t, err)
	assert.Equal(t, "follow-chain", cfg.CommandName)
	assert.Equal(t, "/tmp/sandbox.so", cfg.ExecutorPlugin)
	assert.Equal(t, "ws://node:9944", cfg.Uri)
	assert.Equal(t, chain.TryStateSelect{Kind: chain.TryStateRoundRobin, RoundRobin: 3}, cfg.TryState)
	assert.True(t, cfg.StateRootCheck)
	assert.True(t, cfg.KeepConnection)
	assert.False(t, cfg.ValidateStateRoot)
	require.NotNil(t, cfg.OverwriteStateVersion)
	assert.Equal(t, state.StateV0, *cfg.OverwriteStateVersion)
	assert.Equal(t, time.Minute, cfg.ProgressInterval)
	assert.Equal(t, "/tmp/delta.log", cfg.DeltaLogging)
	assert.True(t, cfg.Runtime.Existing())
	assert.Equal(t, LiveState, cfg.StateSource)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewConfig_OnRuntimeUpgradeLive(t *testing.T) {
	cfg, err := runCommand(t, "on-runtime-upgrade",
		"--executor", "/tmp/sandbox.so",
		"--runtime", "/tmp/runtime.wasm",
		"--checks", "try-state",
		"--no-weight-warnings",
		"live",
		"--uri", "ws://node:9944",
		"--at", "0x0000000000000000000000000000000000000000000000000000000000000012",
		"--pallet", "System",
		"--pallet", "Balances",
		"--prefix", "0xabcd",
	)
	require.NoError(t, err)
	assert.Equal(t, "live", cfg.CommandName)
	assert.Equal(t, LiveState, cfg.StateSource)
	assert.Equal(t, "/tmp/runtime.wasm", cfg.Runtime.Path)
	assert.Equal(t, chain.UpgradeCheckTryState, cfg.Checks)
	assert.True(t, cfg.NoWeightWarnings)
	assert.False(t, cfg.NoIdempotencyChecks)
	require.NotNil(t, cfg.At)
	assert.Equal(t, common.HexToHash("0x12"), *cfg.At)
	assert.Equal(t, []string{"System", "Balances"}, cfg.Pallets)
	assert.Equal(t, [][]byte{{0xab, 0xcd}}, cfg.HashedPrefixes)
	assert.True(t, cfg.ChildTree)
}

func TestNewConfig_OnRuntimeUpgradeSnap(t *testing.T) {
	cfg, err := runCommand(t, "on-runtime-upgrade", "--executor", "/tmp/sandbox.so", "snap", "--path", "/tmp/state.snap")
	require.NoError(t, err)
	assert.Equal(t, SnapState, cfg.StateSource)
	assert.Equal(t, "/tmp/state.snap", cfg.SnapshotPath)
	assert.Equal(t, chain.UpgradeCheckPreAndPost, cfg.Checks)
}

func TestNewConfig_OnRuntimeUpgradeExisting(t *testing.T) {
	cfg, err := runCommand(t, "on-runtime-upgrade", "--executor", "/tmp/sandbox.so", "existing", "--uri", "ws://node:9944")
	require.NoError(t, err)
	assert.Equal(t, ExistingState, cfg.StateSource)
	assert.Equal(t, "ws://node:9944", cfg.Uri)
}

func TestNewConfig_RejectsInvalidValues(t *testing.T) {
	_, err := runCommand(t, "follow-chain", "--executor", "x.so", "--try-state", "rr-x")
	assert.Error(t, err)

	_, err = runCommand(t, "follow-chain", "--executor", "x.so", "--overwrite-state-version", "2")
	assert.Error(t, err)

	_, err = runCommand(t, "on-runtime-upgrade", "--executor", "x.so", "--checks", "some", "snap", "--path", "p")
	assert.Error(t, err)

	_, err = runCommand(t, "on-runtime-upgrade", "--executor", "x.so", "live", "--at", "0x1234")
	assert.Error(t, err)
}
