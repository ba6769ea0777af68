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

// Package rpc talks to a remote node: block and header queries, state
// downloads and the finalized heads subscription.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"
)

const headerCacheSize = 1024

// Client wraps a JSON-RPC connection to a node.
type Client struct {
	rpc     *gethrpc.Client
	headers *lru.Cache[common.Hash, *chain.Header]
}

// Dial connects to the node at uri, both http(s) and ws(s) are supported.
func Dial(ctx context.Context, uri string) (*Client, error) {
	c, err := gethrpc.DialContext(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s; %w", uri, err)
	}
	return NewClient(c), nil
}

// NewClient wraps an existing connection.
func NewClient(c *gethrpc.Client) *Client {
	// only fails for a non-positive size
	headers, _ := lru.New[common.Hash, *chain.Header](headerCacheSize)
	return &Client{rpc: c, headers: headers}
}

// Block fetches the block with the given hash.
func (c *Client) Block(ctx context.Context, hash common.Hash) (*chain.SignedBlock, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "chain_getBlock", hash); err != nil {
		return nil, fmt.Errorf("chain_getBlock %s; %w", hash, err)
	}
	if isNull(raw) {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, hash)
	}
	var block chain.SignedBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, &FormatMismatchError{Method: "chain_getBlock", Err: err}
	}
	c.headers.Add(hash, &block.Block.Header)
	return &block, nil
}

// Header fetches the header with the given hash. Headers are cached.
func (c *Client) Header(ctx context.Context, hash common.Hash) (*chain.Header, error) {
	if h, ok := c.headers.Get(hash); ok {
		return h, nil
	}
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "chain_getHeader", hash); err != nil {
		return nil, fmt.Errorf("chain_getHeader %s; %w", hash, err)
	}
	if isNull(raw) {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, hash)
	}
	var header chain.Header
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, &FormatMismatchError{Method: "chain_getHeader", Err: err}
	}
	c.headers.Add(hash, &header)
	return &header, nil
}

// FinalizedHead returns the hash of the last finalized block.
func (c *Client) FinalizedHead(ctx context.Context) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "chain_getFinalizedHead"); err != nil {
		return common.Hash{}, fmt.Errorf("chain_getFinalizedHead; %w", err)
	}
	return hash, nil
}

// BestHash returns the hash of the best block.
func (c *Client) BestHash(ctx context.Context) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "chain_getBlockHash"); err != nil {
		return common.Hash{}, fmt.Errorf("chain_getBlockHash; %w", err)
	}
	return hash, nil
}

// KeysPaged returns up to count keys with the given prefix that are
// greater than startKey, at the given block.
func (c *Client) KeysPaged(ctx context.Context, prefix []byte, count uint32, startKey []byte, at common.Hash) ([][]byte, error) {
	var keys []hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &keys, "state_getKeysPaged", hexutil.Bytes(prefix), count, optionalBytes(startKey), at); err != nil {
		return nil, fmt.Errorf("state_getKeysPaged; %w", err)
	}
	return toByteSlices(keys), nil
}

// Storage fetches the values of keys in a single batch. Missing entries
// are nil.
func (c *Client) Storage(ctx context.Context, keys [][]byte, at common.Hash) ([][]byte, error) {
	return c.storageBatch(ctx, "state_getStorage", nil, keys, at)
}

// ChildKeysPaged is KeysPaged for the child trie under childKey, the
// prefixed child storage key.
func (c *Client) ChildKeysPaged(ctx context.Context, childKey, prefix []byte, count uint32, startKey []byte, at common.Hash) ([][]byte, error) {
	var keys []hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &keys, "childstate_getKeysPaged", hexutil.Bytes(childKey), hexutil.Bytes(prefix), count, optionalBytes(startKey), at); err != nil {
		return nil, fmt.Errorf("childstate_getKeysPaged; %w", err)
	}
	return toByteSlices(keys), nil
}

// ChildStorage is Storage for the child trie under childKey.
func (c *Client) ChildStorage(ctx context.Context, childKey []byte, keys [][]byte, at common.Hash) ([][]byte, error) {
	return c.storageBatch(ctx, "childstate_getStorage", childKey, keys, at)
}

func (c *Client) storageBatch(ctx context.Context, method string, childKey []byte, keys [][]byte, at common.Hash) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	results := make([]*hexutil.Bytes, len(keys))
	batch := make([]gethrpc.BatchElem, len(keys))
	for i, key := range keys {
		args := []any{hexutil.Bytes(key), at}
		if childKey != nil {
			args = append([]any{hexutil.Bytes(childKey)}, args...)
		}
		batch[i] = gethrpc.BatchElem{Method: method, Args: args, Result: &results[i]}
	}
	if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
		return nil, fmt.Errorf("%s batch; %w", method, err)
	}
	values := make([][]byte, len(keys))
	for i, elem := range batch {
		if elem.Error != nil {
			return nil, fmt.Errorf("%s %x; %w", method, keys[i], elem.Error)
		}
		if results[i] != nil {
			values[i] = *results[i]
		}
	}
	return values, nil
}

// Close terminates the connection.
func (c *Client) Close() {
	c.rpc.Close()
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func optionalBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return hexutil.Bytes(b)
}

func toByteSlices(in []hexutil.Bytes) [][]byte {
	out := make([][]byte, len(in))
	for i, b := range in {
		out[i] = b
	}
	return out
}
