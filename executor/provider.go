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

//go:generate mockgen -source provider.go -destination provider_mock.go -package executor

import (
	"context"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/rpc"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/0xsoniclabs/tryruntime/statesource"
	"github.com/ethereum/go-ethereum/common"
)

// BlockSource provides the finalized heads of a chain and their blocks.
type BlockSource interface {
	// SubscribeFinalizedHeads opens a stream of finalized heads in the
	// order they are finalized.
	SubscribeFinalizedHeads(ctx context.Context) (rpc.HeaderStream, error)
	// Block fetches the block with the given hash.
	Block(ctx context.Context, hash common.Hash) (*chain.Block, error)
	Close() error
}

// StateProvider builds the execution context for a state source.
type StateProvider interface {
	Build(ctx context.Context, src statesource.Source) (*state.Externalities, error)
}
