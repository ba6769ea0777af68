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

package statesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// expectedRoot computes the root of the complete fake remote state.
func expectedRoot(t *testing.T, remote *fakeRemote, version state.StateVersion) common.Hash {
	t.Helper()
	backend := state.NewBackend()
	for k, v := range remote.top {
		backend.Insert([]byte(k), v)
	}
	for storageKey, entries := range remote.children {
		for k, v := range entries {
			backend.InsertChild([]byte(storageKey), []byte(k), v)
		}
	}
	root, err := backend.Seal(version)
	require.NoError(t, err)
	return root
}

func writeRuntime(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtime.wasm")
	require.NoError(t, os.WriteFile(path, []byte(code), 0o600))
	return path
}

func TestBuilder_BuildLiveAtFinalizedHead(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{"old-code": tryRuntimeVersion("node", 100)})
	b := newBuilder(&config.Config{}, sb, Checks{TryRuntime: true}, newQuietLogger(ctrl), remote.dialer())

	ext, err := b.Build(context.Background(), Live{URI: "ws://node", ChildTree: true})
	require.NoError(t, err)

	assert.Equal(t, state.StateV1, ext.StateVersion)
	assert.Equal(t, expectedRoot(t, remote, state.StateV1), ext.Root())
	assert.Equal(t, []common.Hash{finalizedHash}, keysOf(remote.requestedAt))
	assert.Equal(t, 1, remote.closed)
}

func TestBuilder_BuildLiveAtGivenBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	remote.stateVersion = 0
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{"old-code": tryRuntimeVersion("node", 100)})
	b := newBuilder(&config.Config{}, sb, Checks{TryRuntime: true}, newQuietLogger(ctrl), remote.dialer())

	at := common.HexToHash("0xabc")
	ext, err := b.Build(context.Background(), Live{URI: "ws://node", At: &at, ChildTree: true})
	require.NoError(t, err)

	assert.Equal(t, state.StateV0, ext.StateVersion)
	assert.Equal(t, expectedRoot(t, remote, state.StateV0), ext.Root())
	assert.Equal(t, []common.Hash{at}, keysOf(remote.requestedAt))
}

func TestBuilder_BuildExistingUsesBestBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{"old-code": tryRuntimeVersion("node", 100)})
	b := newBuilder(&config.Config{}, sb, Checks{TryRuntime: true}, newQuietLogger(ctrl), remote.dialer())

	ext, err := b.Build(context.Background(), Existing{URI: "ws://node"})
	require.NoError(t, err)

	assert.Equal(t, expectedRoot(t, remote, state.StateV1), ext.Root())
	assert.Equal(t, []common.Hash{bestHash}, keysOf(remote.requestedAt))
}

func TestBuilder_OverwriteStateVersion(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{"old-code": tryRuntimeVersion("node", 100)})
	log := newQuietLogger(ctrl)
	log.EXPECT().Warningf(gomock.Any(), state.StateV1, state.StateV0)

	v0 := state.StateV0
	b := newBuilder(&config.Config{OverwriteStateVersion: &v0}, sb, Checks{}, log, remote.dialer())

	ext, err := b.Build(context.Background(), Live{URI: "ws://node", ChildTree: true})
	require.NoError(t, err)
	assert.Equal(t, state.StateV0, ext.StateVersion)
	assert.Equal(t, expectedRoot(t, remote, state.StateV0), ext.Root())
}

func TestBuilder_FailsWithoutCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	delete(remote.top, ":code")
	b := newBuilder(&config.Config{}, newVersionSandbox(ctrl, nil), Checks{}, newQuietLogger(ctrl), remote.dialer())

	_, err := b.Build(context.Background(), Live{URI: "ws://node"})
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestBuilder_FailsWithoutSandbox(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	b := newBuilder(&config.Config{}, nil, Checks{}, newQuietLogger(ctrl), remote.dialer())

	_, err := b.Build(context.Background(), Live{URI: "ws://node"})
	assert.Error(t, err)
}

func TestBuilder_RequiresTryRuntimeApi(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{"old-code": {SpecName: "node", SpecVersion: 100}})
	b := newBuilder(&config.Config{}, sb, Checks{TryRuntime: true}, newQuietLogger(ctrl), remote.dialer())

	_, err := b.Build(context.Background(), Live{URI: "ws://node"})
	assert.ErrorIs(t, err, ErrNoTryRuntimeApi)
}

func TestBuilder_OnChainVersionFailureIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	b := newBuilder(&config.Config{}, newVersionSandbox(ctrl, nil), Checks{}, newQuietLogger(ctrl), remote.dialer())

	_, err := b.Build(context.Background(), Live{URI: "ws://node"})
	assert.ErrorContains(t, err, "on-chain runtime version")
}

func TestBuilder_ReplacesCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{
		"old-code": {SpecName: "node", SpecVersion: 100},
		"new-code": tryRuntimeVersion("node", 101),
	})
	cfg := &config.Config{Runtime: config.Runtime{Path: writeRuntime(t, "new-code")}}
	b := newBuilder(cfg, sb, Checks{TryRuntime: true, SpecVersion: true}, newQuietLogger(ctrl), remote.dialer())

	ext, err := b.Build(context.Background(), Live{URI: "ws://node", ChildTree: true})
	require.NoError(t, err)

	code, ok := ext.Code()
	require.True(t, ok)
	assert.Equal(t, []byte("new-code"), code)
	assert.NotEqual(t, expectedRoot(t, remote, state.StateV1), ext.Root())

	remote.top[":code"] = []byte("new-code")
	assert.Equal(t, expectedRoot(t, remote, state.StateV1), ext.Root())
}

func TestBuilder_MissingRuntimeFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{"old-code": tryRuntimeVersion("node", 100)})
	cfg := &config.Config{Runtime: config.Runtime{Path: filepath.Join(t.TempDir(), "missing.wasm")}}
	b := newBuilder(cfg, sb, Checks{}, newQuietLogger(ctrl), remote.dialer())

	_, err := b.Build(context.Background(), Live{URI: "ws://node"})
	assert.ErrorContains(t, err, "cannot read runtime")
}

func TestBuilder_SpecNameMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{
		"old-code": tryRuntimeVersion("node", 100),
		"new-code": tryRuntimeVersion("other", 101),
	})
	cfg := &config.Config{Runtime: config.Runtime{Path: writeRuntime(t, "new-code")}}
	b := newBuilder(cfg, sb, Checks{TryRuntime: true, SpecVersion: true}, newQuietLogger(ctrl), remote.dialer())

	_, err := b.Build(context.Background(), Live{URI: "ws://node"})
	assert.ErrorIs(t, err, ErrSpecNameMismatch)
}

func TestBuilder_SpecVersionNotIncreasedOnlyWarns(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{
		"old-code": tryRuntimeVersion("node", 100),
		"new-code": tryRuntimeVersion("node", 100),
	})
	log := newQuietLogger(ctrl)
	log.EXPECT().Warningf(gomock.Any(), uint32(100), uint32(100))
	cfg := &config.Config{Runtime: config.Runtime{Path: writeRuntime(t, "new-code")}}
	b := newBuilder(cfg, sb, Checks{TryRuntime: true, SpecVersion: true}, log, remote.dialer())

	_, err := b.Build(context.Background(), Live{URI: "ws://node"})
	assert.NoError(t, err)
}

func TestBuilder_SpecVersionCheckDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{
		"old-code": tryRuntimeVersion("node", 100),
		"new-code": tryRuntimeVersion("other", 1),
	})
	cfg := &config.Config{Runtime: config.Runtime{Path: writeRuntime(t, "new-code")}}
	b := newBuilder(cfg, sb, Checks{TryRuntime: true}, newQuietLogger(ctrl), remote.dialer())

	_, err := b.Build(context.Background(), Live{URI: "ws://node"})
	assert.NoError(t, err)
}

func TestBuilder_SnapshotRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := newFakeRemote()
	path := filepath.Join(t.TempDir(), "node.snap")

	creator := newBuilder(&config.Config{}, nil, Checks{}, newQuietLogger(ctrl), remote.dialer())
	require.NoError(t, creator.CreateSnapshot(context.Background(), Live{URI: "ws://node", ChildTree: true}, path))

	snap, err := state.ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, finalizedHash, snap.BlockHash)
	assert.Equal(t, state.StateV1, snap.StateVersion)

	sb := newVersionSandbox(ctrl, map[string]*chain.RuntimeVersion{"old-code": tryRuntimeVersion("node", 100)})
	b := newBuilder(&config.Config{}, sb, Checks{TryRuntime: true}, newQuietLogger(ctrl), remote.dialer())
	ext, err := b.Build(context.Background(), Snap{Path: path})
	require.NoError(t, err)
	assert.Equal(t, expectedRoot(t, remote, state.StateV1), ext.Root())
	assert.Equal(t, []byte{8}, mustChild(t, ext, "c2"))
}

func TestBuilder_BuildMissingSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := newBuilder(&config.Config{}, newVersionSandbox(ctrl, nil), Checks{}, newQuietLogger(ctrl), nil)

	_, err := b.Build(context.Background(), Snap{Path: filepath.Join(t.TempDir(), "missing.snap")})
	assert.Error(t, err)
}

func mustChild(t *testing.T, ext *state.Externalities, key string) []byte {
	t.Helper()
	v, ok := ext.ChildStorage(childKey, []byte(key))
	require.True(t, ok)
	return v
}

func TestFromConfig(t *testing.T) {
	at := common.HexToHash("0x01")
	src, err := FromConfig(&config.Config{StateSource: config.LiveState, Uri: "ws://a", At: &at, Pallets: []string{"System"}, ChildTree: true})
	require.NoError(t, err)
	assert.Equal(t, Live{URI: "ws://a", At: &at, Pallets: []string{"System"}, ChildTree: true}, src)

	src, err = FromConfig(&config.Config{StateSource: config.SnapState, SnapshotPath: "x.snap"})
	require.NoError(t, err)
	assert.Equal(t, Snap{Path: "x.snap"}, src)

	src, err = FromConfig(&config.Config{StateSource: config.ExistingState, Uri: "ws://a"})
	require.NoError(t, err)
	assert.Equal(t, Existing{URI: "ws://a"}, src)

	_, err = FromConfig(&config.Config{StateSource: "other"})
	assert.Error(t, err)
}
