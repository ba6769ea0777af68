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
	"errors"
	"fmt"
	"os"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/sandbox"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNoCode            = errors.New("no runtime code found in state")
	ErrNoTryRuntimeApi   = errors.New("runtime does not implement the TryRuntime api, was it compiled with the try-runtime feature?")
	ErrSpecNameMismatch  = errors.New("spec name of the new runtime differs from the on-chain one")
	ErrUnsupportedSource = errors.New("unsupported state source")
)

// Checks are the sanity checks applied to the runtime of a built context.
type Checks struct {
	// TryRuntime requires the runtime to expose the TryRuntime api.
	TryRuntime bool
	// SpecVersion compares the replacement runtime with the on-chain one.
	SpecVersion bool
}

// Builder creates execution contexts from a Source.
type Builder struct {
	cfg     *config.Config
	sandbox sandbox.Sandbox
	checks  Checks
	log     logger.Logger
	dial    Dialer
}

// NewBuilder returns a builder executing runtime calls in sb. The
// sandbox may be nil for builders only used with CreateSnapshot.
func NewBuilder(cfg *config.Config, sb sandbox.Sandbox, checks Checks) *Builder {
	return newBuilder(cfg, sb, checks, logger.NewLogger(cfg.LogLevel, "State-Source"), DialRPC)
}

func newBuilder(cfg *config.Config, sb sandbox.Sandbox, checks Checks, log logger.Logger, dial Dialer) *Builder {
	return &Builder{cfg: cfg, sandbox: sb, checks: checks, log: log, dial: dial}
}

// Build loads the state selected by src and prepares it for execution:
// the state version is fixed, the runtime code is replaced if configured
// and the resulting runtime is checked.
func (b *Builder) Build(ctx context.Context, src Source) (*state.Externalities, error) {
	if b.sandbox == nil {
		return nil, fmt.Errorf("cannot build %v without a sandbox", src)
	}
	b.log.Noticef("Building state from %v", src)

	backend, version, err := b.load(ctx, src)
	if err != nil {
		return nil, err
	}
	if _, ok := backend.Storage(state.CodeKey); !ok {
		return nil, ErrNoCode
	}
	if b.cfg.OverwriteStateVersion != nil {
		b.log.Warningf("Overwriting state version %v with %v", version, *b.cfg.OverwriteStateVersion)
		version = *b.cfg.OverwriteStateVersion
	}
	root, err := backend.Seal(version)
	if err != nil {
		return nil, err
	}
	ext := state.NewExternalities(backend, version)

	onChain, err := sandbox.RuntimeVersion(ctx, b.sandbox, ext)
	if err != nil {
		return nil, fmt.Errorf("cannot read on-chain runtime version; %w", err)
	}
	b.log.Infof("On-chain runtime %v, state root %v, state version %v", onChain, root, version)

	current := onChain
	if !b.cfg.Runtime.Existing() {
		if current, err = b.replaceCode(ctx, ext); err != nil {
			return nil, err
		}
	}

	if err = b.check(onChain, current); err != nil {
		return nil, err
	}
	return ext, nil
}

// replaceCode stores the configured runtime under :code and returns its version.
func (b *Builder) replaceCode(ctx context.Context, ext *state.Externalities) (*chain.RuntimeVersion, error) {
	code, err := os.ReadFile(b.cfg.Runtime.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot read runtime; %w", err)
	}
	ext.Backend.Insert(state.CodeKey, code)
	if _, err = ext.Backend.Seal(ext.StateVersion); err != nil {
		return nil, err
	}
	version, err := sandbox.RuntimeVersion(ctx, b.sandbox, ext)
	if err != nil {
		return nil, fmt.Errorf("cannot read version of runtime %s; %w", b.cfg.Runtime.Path, err)
	}
	b.log.Infof("Replaced on-chain code with %s (%d bytes), new runtime %v", b.cfg.Runtime.Path, len(code), version)
	return version, nil
}

func (b *Builder) check(onChain, current *chain.RuntimeVersion) error {
	if b.checks.TryRuntime && !current.HasApi(chain.TryRuntimeApiID) {
		return fmt.Errorf("%v: %w", current, ErrNoTryRuntimeApi)
	}
	if !b.checks.SpecVersion || b.cfg.Runtime.Existing() {
		return nil
	}
	if current.SpecName != onChain.SpecName {
		return fmt.Errorf("%w: %q != %q", ErrSpecNameMismatch, current.SpecName, onChain.SpecName)
	}
	if current.SpecVersion <= onChain.SpecVersion {
		b.log.Warningf("New runtime spec version %d is not greater than the on-chain spec version %d, the upgrade would not be applied on chain", current.SpecVersion, onChain.SpecVersion)
	}
	return nil
}

// load returns the unsealed backend of src and the state version it was
// recorded with.
func (b *Builder) load(ctx context.Context, src Source) (*state.Backend, state.StateVersion, error) {
	switch s := src.(type) {
	case Live:
		return b.loadRemote(ctx, s.URI, s.At, prefixes(s.Pallets, s.HashedPrefixes), s.ChildTree)
	case Existing:
		remote, err := b.dial(ctx, s.URI)
		if err != nil {
			return nil, 0, err
		}
		best, err := remote.BestHash(ctx)
		remote.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("cannot get best block; %w", err)
		}
		return b.loadRemote(ctx, s.URI, &best, prefixes(nil, nil), true)
	case Snap:
		snap, err := state.ReadSnapshot(s.Path)
		if err != nil {
			return nil, 0, err
		}
		b.log.Infof("Loaded snapshot of block %v", snap.BlockHash)
		return snap.Backend, snap.StateVersion, nil
	default:
		return nil, 0, fmt.Errorf("%w: %T", ErrUnsupportedSource, src)
	}
}

func (b *Builder) loadRemote(ctx context.Context, uri string, at *common.Hash, filter [][]byte, childTree bool) (*state.Backend, state.StateVersion, error) {
	remote, err := b.dial(ctx, uri)
	if err != nil {
		return nil, 0, err
	}
	defer remote.Close()

	hash, err := resolve(ctx, remote, at)
	if err != nil {
		return nil, 0, err
	}
	header, err := remote.Header(ctx, hash)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot get header %v; %w", hash, err)
	}
	version, err := remote.RuntimeVersion(ctx, hash)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot get runtime version at %v; %w", hash, err)
	}
	b.log.Infof("Downloading state of block #%d (%v)", header.Number, hash)

	backend, err := newDownloader(remote, b.log).download(ctx, hash, filter, childTree)
	if err != nil {
		return nil, 0, err
	}
	return backend, state.StateVersion(version.StateVersion), nil
}

// CreateSnapshot downloads the state selected by src and stores it at path.
func (b *Builder) CreateSnapshot(ctx context.Context, src Live, path string) error {
	remote, err := b.dial(ctx, src.URI)
	if err != nil {
		return err
	}
	hash, err := resolve(ctx, remote, src.At)
	remote.Close()
	if err != nil {
		return err
	}
	src.At = &hash

	backend, version, err := b.load(ctx, src)
	if err != nil {
		return err
	}
	if b.cfg.OverwriteStateVersion != nil {
		version = *b.cfg.OverwriteStateVersion
	}
	root, err := backend.Seal(version)
	if err != nil {
		return err
	}
	if err = state.WriteSnapshot(path, &state.Snapshot{StateVersion: version, BlockHash: hash, Backend: backend}); err != nil {
		return fmt.Errorf("cannot write snapshot; %w", err)
	}
	b.log.Noticef("Snapshot of block %v with state root %v written to %s", hash, root, path)
	return nil
}

// resolve returns at or the finalized head when at is nil.
func resolve(ctx context.Context, remote Remote, at *common.Hash) (common.Hash, error) {
	if at != nil {
		return *at, nil
	}
	hash, err := remote.FinalizedHead(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot get finalized head; %w", err)
	}
	return hash, nil
}
