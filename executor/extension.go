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

//go:generate mockgen -source extension.go -destination extension_mock.go -package executor

import (
	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/ethereum/go-ethereum/common"
)

// Extension is an optional component hooked into the block loop of the
// follow-chain engine. Errors returned by any hook abort the run.
type Extension interface {
	// PreRun is called before the first header is awaited.
	PreRun(State, *Context) error
	// PreBlock is called for every fetched block before it is executed.
	// Heads whose block cannot be fetched do not reach the extensions.
	PreBlock(State, *Context) error
	// PostBlock is called after a block was executed and its changes
	// were applied.
	PostBlock(State, *Context) error
	// PostRun is called once at the end with the error the run ended
	// with, nil on success.
	PostRun(State, *Context, error) error
}

// State describes the block currently being processed.
type State struct {
	Block  uint64
	Hash   common.Hash
	Header *chain.Header
}

// Context is shared by the engine and its extensions for the whole run.
type Context struct {
	// Externalities is nil until the execution context was built from
	// the parent of the first fetched block.
	Externalities *state.Externalities
	// Result and Diff hold the outcome of the last executed block.
	Result *CallResult
	Diff   *state.StorageDiff
	// Executed counts the successfully executed blocks.
	Executed uint64
	// Heads counts the finalized heads received so far, including the
	// current one and heads whose block could not be fetched.
	Heads uint64
	// PreviousHead is the number of the head received before the current
	// one. It is only meaningful when Heads > 1.
	PreviousHead uint64
}
