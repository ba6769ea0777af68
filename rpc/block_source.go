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

package rpc

import (
	"context"
	"sync"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/ethereum/go-ethereum/common"
)

// BlockSource provides finalized heads and the blocks behind them.
type BlockSource struct {
	uri            string
	keepConnection bool

	mu     sync.Mutex
	client *Client
}

// NewBlockSource creates a block source for the node at uri. With
// keepConnection a single connection is reused for all block fetches,
// otherwise every fetch dials a new one.
func NewBlockSource(uri string, keepConnection bool) *BlockSource {
	return &BlockSource{uri: uri, keepConnection: keepConnection}
}

// SubscribeFinalizedHeads starts a new finalized heads subscription.
func (s *BlockSource) SubscribeFinalizedHeads(ctx context.Context) (HeaderStream, error) {
	return SubscribeFinalizedHeads(ctx, s.uri)
}

// Block fetches the block with the given hash.
func (s *BlockSource) Block(ctx context.Context, hash common.Hash) (*chain.Block, error) {
	client, release, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	signed, err := client.Block(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &signed.Block, nil
}

func (s *BlockSource) connection(ctx context.Context) (*Client, func(), error) {
	if !s.keepConnection {
		client, err := Dial(ctx, s.uri)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		client, err := Dial(ctx, s.uri)
		if err != nil {
			return nil, nil, err
		}
		s.client = client
	}
	return s.client, func() {}, nil
}

// Close releases a kept connection.
func (s *BlockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	return nil
}
