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

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/rpc"
	"github.com/ethereum/go-ethereum/common"
)

// Remote is the part of a node's rpc interface the state is read through.
type Remote interface {
	Header(ctx context.Context, hash common.Hash) (*chain.Header, error)
	FinalizedHead(ctx context.Context) (common.Hash, error)
	BestHash(ctx context.Context) (common.Hash, error)
	RuntimeVersion(ctx context.Context, at common.Hash) (*chain.RuntimeVersion, error)
	KeysPaged(ctx context.Context, prefix []byte, count uint32, startKey []byte, at common.Hash) ([][]byte, error)
	Storage(ctx context.Context, keys [][]byte, at common.Hash) ([][]byte, error)
	ChildKeysPaged(ctx context.Context, childKey, prefix []byte, count uint32, startKey []byte, at common.Hash) ([][]byte, error)
	ChildStorage(ctx context.Context, childKey []byte, keys [][]byte, at common.Hash) ([][]byte, error)
	Close()
}

// Dialer connects to the node at uri.
type Dialer func(ctx context.Context, uri string) (Remote, error)

// DialRPC connects through a JSON-RPC client.
func DialRPC(ctx context.Context, uri string) (Remote, error) {
	client, err := rpc.Dial(ctx, uri)
	if err != nil {
		return nil, err
	}
	return client, nil
}
