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

// Package chain holds the block, header and runtime data model of the
// replayed chain together with their SCALE encodings.
package chain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/blake2b"
)

// Header is a finalized block header as reported by the node.
type Header struct {
	ParentHash     common.Hash
	Number         uint64
	StateRoot      common.Hash
	ExtrinsicsRoot common.Hash
	// Digest holds the already SCALE encoded digest items.
	Digest [][]byte
}

type jsonHeader struct {
	ParentHash     common.Hash    `json:"parentHash"`
	Number         hexutil.Uint64 `json:"number"`
	StateRoot      common.Hash    `json:"stateRoot"`
	ExtrinsicsRoot common.Hash    `json:"extrinsicsRoot"`
	Digest         struct {
		Logs []hexutil.Bytes `json:"logs"`
	} `json:"digest"`
}

func (h *Header) UnmarshalJSON(data []byte) error {
	var dec jsonHeader
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}
	h.ParentHash = dec.ParentHash
	h.Number = uint64(dec.Number)
	h.StateRoot = dec.StateRoot
	h.ExtrinsicsRoot = dec.ExtrinsicsRoot
	h.Digest = make([][]byte, 0, len(dec.Digest.Logs))
	for _, l := range dec.Digest.Logs {
		h.Digest = append(h.Digest, l)
	}
	return nil
}

func (h Header) MarshalJSON() ([]byte, error) {
	var enc jsonHeader
	enc.ParentHash = h.ParentHash
	enc.Number = hexutil.Uint64(h.Number)
	enc.StateRoot = h.StateRoot
	enc.ExtrinsicsRoot = h.ExtrinsicsRoot
	enc.Digest.Logs = make([]hexutil.Bytes, 0, len(h.Digest))
	for _, l := range h.Digest {
		enc.Digest.Logs = append(enc.Digest.Logs, l)
	}
	return json.Marshal(enc)
}

// Encode returns the SCALE encoding of the header. The block number is
// compact encoded, digest items are appended as received.
func (h *Header) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(h.ParentHash[:])
	number, err := EncodeCompact(h.Number)
	if err != nil {
		return nil, fmt.Errorf("cannot encode block number; %w", err)
	}
	buf.Write(number)
	buf.Write(h.StateRoot[:])
	buf.Write(h.ExtrinsicsRoot[:])
	if err = writeOpaqueList(&buf, h.Digest); err != nil {
		return nil, fmt.Errorf("cannot encode digest; %w", err)
	}
	return buf.Bytes(), nil
}

// Hash returns the blake2b-256 hash of the encoded header.
func (h *Header) Hash() (common.Hash, error) {
	enc, err := h.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(blake2b.Sum256(enc)), nil
}

// Block is a full block body. Extrinsics are kept in their opaque
// encoded form.
type Block struct {
	Header     Header          `json:"header"`
	Extrinsics []hexutil.Bytes `json:"extrinsics"`
}

// SignedBlock is the envelope returned by chain_getBlock.
type SignedBlock struct {
	Block          Block           `json:"block"`
	Justifications json.RawMessage `json:"justifications,omitempty"`
}

// Encode returns the SCALE encoding of the block.
func (b *Block) Encode() ([]byte, error) {
	header, err := b.Header.Encode()
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(header)
	xts := make([][]byte, 0, len(b.Extrinsics))
	for _, xt := range b.Extrinsics {
		xts = append(xts, xt)
	}
	if err = writeOpaqueList(buf, xts); err != nil {
		return nil, fmt.Errorf("cannot encode extrinsics; %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeCompact returns the SCALE compact encoding of n.
func EncodeCompact(n uint64) ([]byte, error) {
	return scale.Marshal(uint(n))
}

// writeOpaqueList writes a compact length prefix followed by the items
// which are expected to be encoded already.
func writeOpaqueList(buf *bytes.Buffer, items [][]byte) error {
	l, err := EncodeCompact(uint64(len(items)))
	if err != nil {
		return err
	}
	buf.Write(l)
	for _, item := range items {
		buf.Write(item)
	}
	return nil
}
