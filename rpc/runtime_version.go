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
	"encoding/json"
	"fmt"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type jsonRuntimeVersion struct {
	SpecName           string               `json:"specName"`
	ImplName           string               `json:"implName"`
	AuthoringVersion   uint32               `json:"authoringVersion"`
	SpecVersion        uint32               `json:"specVersion"`
	ImplVersion        uint32               `json:"implVersion"`
	Apis               [][2]json.RawMessage `json:"apis"`
	TransactionVersion uint32               `json:"transactionVersion"`
	StateVersion       uint8                `json:"stateVersion"`
}

// RuntimeVersion returns the version of the runtime of the given block.
func (c *Client) RuntimeVersion(ctx context.Context, at common.Hash) (*chain.RuntimeVersion, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "state_getRuntimeVersion", at); err != nil {
		return nil, fmt.Errorf("state_getRuntimeVersion; %w", err)
	}
	version, err := decodeRuntimeVersion(raw)
	if err != nil {
		return nil, &FormatMismatchError{Method: "state_getRuntimeVersion", Err: err}
	}
	return version, nil
}

func decodeRuntimeVersion(raw json.RawMessage) (*chain.RuntimeVersion, error) {
	var dec jsonRuntimeVersion
	if err := json.Unmarshal(raw, &dec); err != nil {
		return nil, err
	}
	v := &chain.RuntimeVersion{
		SpecName:           dec.SpecName,
		ImplName:           dec.ImplName,
		AuthoringVersion:   dec.AuthoringVersion,
		SpecVersion:        dec.SpecVersion,
		ImplVersion:        dec.ImplVersion,
		TransactionVersion: dec.TransactionVersion,
		StateVersion:       dec.StateVersion,
	}
	for _, api := range dec.Apis {
		var id hexutil.Bytes
		if err := json.Unmarshal(api[0], &id); err != nil {
			return nil, fmt.Errorf("invalid api id; %w", err)
		}
		if len(id) != len(chain.ApiID{}) {
			return nil, fmt.Errorf("invalid api id length %d", len(id))
		}
		var version uint32
		if err := json.Unmarshal(api[1], &version); err != nil {
			return nil, fmt.Errorf("invalid api version; %w", err)
		}
		v.Apis = append(v.Apis, chain.ApiVersion{ID: chain.ApiID(id), Version: version})
	}
	return v, nil
}
