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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	blocks      map[common.Hash]json.RawMessage
	headers     map[common.Hash]json.RawMessage
	finalized   common.Hash
	best        common.Hash
	headerCalls atomic.Int32
}

func (c *fakeChain) GetBlock(hash common.Hash) json.RawMessage {
	if b, ok := c.blocks[hash]; ok {
		return b
	}
	return json.RawMessage("null")
}

func (c *fakeChain) GetHeader(hash common.Hash) json.RawMessage {
	c.headerCalls.Add(1)
	if h, ok := c.headers[hash]; ok {
		return h
	}
	return json.RawMessage("null")
}

func (c *fakeChain) GetFinalizedHead() common.Hash {
	return c.finalized
}

func (c *fakeChain) GetBlockHash(number *hexutil.Uint64) common.Hash {
	return c.best
}

type fakeState struct {
	entries map[string][]byte
}

func (s *fakeState) GetKeysPaged(prefix hexutil.Bytes, count uint32, startKey *hexutil.Bytes, at *common.Hash) []hexutil.Bytes {
	return keysPaged(s.entries, prefix, count, startKey)
}

func (s *fakeState) GetStorage(key hexutil.Bytes, at *common.Hash) *hexutil.Bytes {
	v, ok := s.entries[string(key)]
	if !ok {
		return nil
	}
	b := hexutil.Bytes(v)
	return &b
}

type fakeChildState struct {
	children map[string]map[string][]byte
}

func (s *fakeChildState) GetKeysPaged(childKey, prefix hexutil.Bytes, count uint32, startKey *hexutil.Bytes, at *common.Hash) []hexutil.Bytes {
	return keysPaged(s.children[string(childKey)], prefix, count, startKey)
}

func (s *fakeChildState) GetStorage(childKey, key hexutil.Bytes, at *common.Hash) *hexutil.Bytes {
	v, ok := s.children[string(childKey)][string(key)]
	if !ok {
		return nil
	}
	b := hexutil.Bytes(v)
	return &b
}

func keysPaged(entries map[string][]byte, prefix hexutil.Bytes, count uint32, startKey *hexutil.Bytes) []hexutil.Bytes {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := []hexutil.Bytes{}
	for _, k := range keys {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if startKey != nil && k <= string(*startKey) {
			continue
		}
		if uint32(len(res)) == count {
			break
		}
		res = append(res, hexutil.Bytes(k))
	}
	return res
}

type fakeNode struct {
	chain      *fakeChain
	state      *fakeState
	childState *fakeChildState
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		chain: &fakeChain{
			blocks:  make(map[common.Hash]json.RawMessage),
			headers: make(map[common.Hash]json.RawMessage),
		},
		state:      &fakeState{entries: make(map[string][]byte)},
		childState: &fakeChildState{children: make(map[string]map[string][]byte)},
	}
}

// serve starts an http JSON-RPC server for the node.
func (n *fakeNode) serve(t *testing.T) string {
	t.Helper()
	server := gethrpc.NewServer()
	require.NoError(t, server.RegisterName("chain", n.chain))
	require.NoError(t, server.RegisterName("state", n.state))
	require.NoError(t, server.RegisterName("childstate", n.childState))
	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})
	return httpServer.URL
}

func (n *fakeNode) addBlock(t *testing.T, block chain.Block) common.Hash {
	t.Helper()
	hash, err := block.Header.Hash()
	require.NoError(t, err)
	data, err := json.Marshal(chain.SignedBlock{Block: block})
	require.NoError(t, err)
	n.chain.blocks[hash] = data
	header, err := json.Marshal(block.Header)
	require.NoError(t, err)
	n.chain.headers[hash] = header
	return hash
}

// serveSubscription starts a websocket server accepting a single
// finalized heads subscription. It sends the given notifications and
// then either closes the connection or waits for the unsubscribe
// request, which is reported on the returned channel.
func serveSubscription(t *testing.T, notifications []json.RawMessage, waitForUnsubscribe bool) (string, <-chan string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req jsonrpcMessage
		if err = conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Method != subscribeMethod {
			_ = conn.WriteJSON(jsonrpcMessage{Version: "2.0", ID: req.ID, Error: &jsonError{Code: -32601, Message: "method not found"}})
			return
		}
		if err = conn.WriteJSON(jsonrpcMessage{Version: "2.0", ID: req.ID, Result: json.RawMessage(`"sub-1"`)}); err != nil {
			return
		}
		for _, n := range notifications {
			if err = conn.WriteMessage(websocket.TextMessage, n); err != nil {
				return
			}
		}
		if waitForUnsubscribe {
			var unsub jsonrpcMessage
			if err = conn.ReadJSON(&unsub); err == nil {
				received <- unsub.Method
			}
			return
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), received
}

func notification(t *testing.T, subscription string, result any) json.RawMessage {
	t.Helper()
	raw, ok := result.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(result)
		require.NoError(t, err)
	}
	params, err := json.Marshal(subscriptionParams{Subscription: json.RawMessage(`"` + subscription + `"`), Result: raw})
	require.NoError(t, err)
	msg, err := json.Marshal(jsonrpcMessage{Version: "2.0", Method: notificationMethod, Params: params})
	require.NoError(t, err)
	return msg
}

func testHeader(number uint64) chain.Header {
	return chain.Header{
		ParentHash: common.HexToHash("0x01"),
		Number:     number,
		StateRoot:  common.HexToHash("0x1234"),
		Digest:     [][]byte{{0x00}},
	}
}

func (s *fakeState) GetRuntimeVersion(at *common.Hash) json.RawMessage {
	return json.RawMessage(`{"specName":"node","implName":"node-impl","authoringVersion":1,"specVersion":105,"implVersion":2,"apis":[["0xdf6acb689907609b",4],["0x8aee8ecc9a2c5ca3",1]],"transactionVersion":3,"stateVersion":1}`)
}
