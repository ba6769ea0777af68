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

package executor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/rpc"
	"github.com/0xsoniclabs/tryruntime/sandbox"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/0xsoniclabs/tryruntime/statesource"
	"github.com/cockroachdb/errors"
)

// FollowChain executes every finalized block of a live chain with the
// configured runtime on top of a local copy of the chain's state.
type FollowChain struct {
	cfg        *config.Config
	blocks     BlockSource
	states     StateProvider
	sandbox    sandbox.Sandbox
	pipeline   *CallPipeline
	extensions []Extension
	log        logger.Logger
}

func NewFollowChain(cfg *config.Config, blocks BlockSource, states StateProvider, sb sandbox.Sandbox, extensions []Extension) *FollowChain {
	return newFollowChain(cfg, blocks, states, sb, extensions, logger.NewLogger(cfg.LogLevel, "Follow-Chain"))
}

func newFollowChain(cfg *config.Config, blocks BlockSource, states StateProvider, sb sandbox.Sandbox, extensions []Extension, log logger.Logger) *FollowChain {
	return &FollowChain{
		cfg:        cfg,
		blocks:     blocks,
		states:     states,
		sandbox:    sb,
		pipeline:   NewCallPipeline(sb, log),
		extensions: extensions,
		log:        log,
	}
}

// Run follows the chain until the finalized heads stream ends or ctx is
// cancelled. Blocks that cannot be fetched or executed are logged and
// skipped. The end of the stream is not an error.
func (f *FollowChain) Run(ctx context.Context) (err error) {
	stream, err := f.blocks.SubscribeFinalizedHeads(ctx)
	if err != nil {
		return errors.Join(ErrStreamOpen, err)
	}
	defer func() {
		err = errors.Join(err, stream.Close())
	}()

	execCtx := &Context{}
	var current State
	if err = f.preRun(current, execCtx); err != nil {
		return err
	}
	defer func() {
		err = f.postRun(current, execCtx, err)
	}()

	start := time.Now()
	for {
		header, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				f.log.Errorf("Finalized heads subscription ended after %d executed blocks in %v", execCtx.Executed, time.Since(start).Round(time.Second))
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			var formatErr *rpc.FormatMismatchError
			if errors.As(err, &formatErr) {
				f.log.Errorf("Skipping finalized head in unexpected format; %v", err)
			} else {
				f.log.Errorf("Skipping unreadable finalized head; %v", err)
			}
			continue
		}

		hash, err := header.Hash()
		if err != nil {
			f.log.Errorf("Skipping block #%d, cannot hash header; %v", header.Number, err)
			continue
		}
		current = State{Block: header.Number, Hash: hash, Header: header}
		execCtx.Heads++
		if err = f.processBlock(ctx, current, execCtx); err != nil {
			return err
		}
		execCtx.PreviousHead = current.Block
	}
}

// processBlock fetches and executes one block. Only errors that must abort
// the run are returned.
func (f *FollowChain) processBlock(ctx context.Context, st State, execCtx *Context) error {
	block, err := f.blocks.Block(ctx, st.Hash)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var formatErr *rpc.FormatMismatchError
		if errors.As(err, &formatErr) {
			f.log.Errorf("Skipping block #%d (%v), unexpected block format; %v", st.Block, st.Hash, err)
		} else {
			f.log.Errorf("Skipping block #%d (%v), cannot fetch block; %v", st.Block, st.Hash, err)
		}
		return nil
	}

	if execCtx.Externalities == nil {
		parent := st.Header.ParentHash
		ext, err := f.states.Build(ctx, statesource.Live{URI: f.cfg.Uri, At: &parent, ChildTree: true})
		if err != nil {
			return fmt.Errorf("cannot build state at parent %v of block #%d; %w", parent, st.Block, err)
		}
		execCtx.Externalities = ext
		f.log.Noticef("Initialized state at parent %v of block #%d with root %v", parent, st.Block, ext.Root())
	}

	if err = f.preBlock(st, execCtx); err != nil {
		return err
	}

	args, err := chain.EncodeExecuteBlockArgs(block, f.cfg.StateRootCheck, true, f.cfg.TryState)
	if err != nil {
		f.log.Errorf("Skipping block #%d, cannot encode block; %v", st.Block, err)
		return nil
	}
	ext := execCtx.Externalities
	res, err := f.pipeline.Call(ctx, ext, chain.ExecuteBlockMethod, args, sandbox.FullExtensions, f.proofPath(st.Block))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		f.log.Errorf("Block #%d (%v) failed; %v", st.Block, st.Hash, err)
		return nil
	}

	diff, err := res.Changes.Drain(ext.Backend, ext.StateVersion)
	if err != nil {
		f.log.Errorf("Cannot drain storage changes of block #%d; %v", st.Block, err)
		return nil
	}
	ext.Apply(diff)
	execCtx.Result = res
	execCtx.Diff = diff
	execCtx.Executed++
	f.log.Infof("Executed block #%d (%v), %d changes, new state root %v", st.Block, st.Hash, diff.Transaction.Len(), ext.Root())

	if diff.Transaction.Touches(state.CodeKey) {
		f.refreshStateVersion(ctx, st, ext)
	}
	return f.postBlock(st, execCtx)
}

// refreshStateVersion reads the version of a runtime installed by a block
// and adopts its state version for the following blocks.
func (f *FollowChain) refreshStateVersion(ctx context.Context, st State, ext *state.Externalities) {
	version, err := sandbox.RuntimeVersion(ctx, f.sandbox, ext)
	if err != nil {
		f.log.Errorf("Block #%d replaced the runtime, cannot read its version; %v", st.Block, err)
		return
	}
	f.log.Warningf("Block #%d upgraded the runtime to %v", st.Block, version)
	if f.cfg.OverwriteStateVersion != nil {
		return
	}
	next := state.StateVersion(version.StateVersion)
	if next != ext.StateVersion && next.Valid() {
		f.log.Warningf("Switching state version from %v to %v", ext.StateVersion, next)
		ext.StateVersion = next
	}
}

func (f *FollowChain) proofPath(block uint64) string {
	if f.cfg.ExportProof == "" {
		return ""
	}
	return filepath.Join(f.cfg.ExportProof, fmt.Sprintf("%d.json", block))
}

func (f *FollowChain) preRun(st State, ctx *Context) error {
	for _, e := range f.extensions {
		if err := e.PreRun(st, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (f *FollowChain) preBlock(st State, ctx *Context) error {
	for _, e := range f.extensions {
		if err := e.PreBlock(st, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (f *FollowChain) postBlock(st State, ctx *Context) error {
	for _, e := range f.extensions {
		if err := e.PostBlock(st, ctx); err != nil {
			return err
		}
	}
	return nil
}

// postRun calls all extensions even if some of them fail.
func (f *FollowChain) postRun(st State, ctx *Context, err error) error {
	errs := []error{err}
	for _, e := range f.extensions {
		errs = append(errs, e.PostRun(st, ctx, err))
	}
	return errors.Join(errs...)
}
