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
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/sandbox"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/mock/gomock"
)

var (
	finalizedHash = common.HexToHash("0xf1")
	bestHash      = common.HexToHash("0xb1")
	childKey      = append(bytes.Clone(state.DefaultChildPrefix), []byte("crowdloan")...)
)

// fakeRemote serves a single in-memory state for any block.
type fakeRemote struct {
	mu           sync.Mutex
	top          map[string][]byte
	children     map[string]map[string][]byte
	stateVersion uint8
	requestedAt  map[common.Hash]int
	closed       int
	failStorage  bool
}

func newFakeRemote() *fakeRemote {
	r := &fakeRemote{
		top: map[string][]byte{
			":code": []byte("old-code"),
			"aa":    {1},
			"ab":    {2},
			"ac":    {3},
			"ba":    {4},
			"bb":    {5},
		},
		children: map[string]map[string][]byte{
			string(childKey): {"c1": {7}, "c2": {8}, "c3": {9}},
		},
		stateVersion: 1,
		requestedAt:  make(map[common.Hash]int),
	}
	r.top[string(childKey)] = bytes.Repeat([]byte{0xee}, 32)
	return r
}

func (r *fakeRemote) dialer() Dialer {
	return func(context.Context, string) (Remote, error) {
		return r, nil
	}
}

func (r *fakeRemote) record(at common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestedAt[at]++
}

func (r *fakeRemote) Header(_ context.Context, hash common.Hash) (*chain.Header, error) {
	r.record(hash)
	return &chain.Header{Number: 42}, nil
}

func (r *fakeRemote) FinalizedHead(context.Context) (common.Hash, error) {
	return finalizedHash, nil
}

func (r *fakeRemote) BestHash(context.Context) (common.Hash, error) {
	return bestHash, nil
}

func (r *fakeRemote) RuntimeVersion(_ context.Context, at common.Hash) (*chain.RuntimeVersion, error) {
	r.record(at)
	return &chain.RuntimeVersion{SpecName: "node", StateVersion: r.stateVersion}, nil
}

func page(entries map[string][]byte, prefix []byte, count uint32, start []byte) [][]byte {
	var keys []string
	for k := range entries {
		if strings.HasPrefix(k, string(prefix)) && (start == nil || k > string(start)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if uint32(len(keys)) > count {
		keys = keys[:count]
	}
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, []byte(k))
	}
	return out
}

func (r *fakeRemote) KeysPaged(_ context.Context, prefix []byte, count uint32, start []byte, at common.Hash) ([][]byte, error) {
	r.record(at)
	return page(r.top, prefix, count, start), nil
}

func (r *fakeRemote) Storage(_ context.Context, keys [][]byte, at common.Hash) ([][]byte, error) {
	r.record(at)
	if r.failStorage {
		return nil, errors.New("storage unavailable")
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = r.top[string(k)]
	}
	return out, nil
}

func (r *fakeRemote) ChildKeysPaged(_ context.Context, child, prefix []byte, count uint32, start []byte, at common.Hash) ([][]byte, error) {
	r.record(at)
	return page(r.children[string(child)], prefix, count, start), nil
}

func (r *fakeRemote) ChildStorage(_ context.Context, child []byte, keys [][]byte, at common.Hash) ([][]byte, error) {
	r.record(at)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = r.children[string(child)][string(k)]
	}
	return out, nil
}

func (r *fakeRemote) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

// newQuietLogger accepts all informational logging.
func newQuietLogger(ctrl *gomock.Controller) *logger.MockLogger {
	log := logger.NewMockLogger(ctrl)
	log.EXPECT().Noticef(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Infof(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Debugf(gomock.Any(), gomock.Any()).AnyTimes()
	return log
}

// newVersionSandbox answers Core_version with the version registered for
// the code found in the context.
func newVersionSandbox(ctrl *gomock.Controller, versions map[string]*chain.RuntimeVersion) *sandbox.MockSandbox {
	sb := sandbox.NewMockSandbox(ctrl)
	sb.EXPECT().Call(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ext *state.Externalities, req sandbox.Request) (*sandbox.Response, error) {
			if req.Method != chain.CoreVersionMethod {
				return nil, errors.New("unexpected method " + req.Method)
			}
			code, _ := ext.Code()
			version, ok := versions[string(code)]
			if !ok {
				return nil, sandbox.ErrTrap
			}
			out, err := chain.EncodeRuntimeVersion(version)
			if err != nil {
				return nil, err
			}
			return &sandbox.Response{Changes: state.NewChangeSet(), Output: out}, nil
		}).AnyTimes()
	return sb
}

func tryRuntimeVersion(name string, specVersion uint32) *chain.RuntimeVersion {
	return &chain.RuntimeVersion{
		SpecName:    name,
		SpecVersion: specVersion,
		Apis:        []chain.ApiVersion{{ID: chain.TryRuntimeApiID, Version: 1}},
	}
}
