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

package chain

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"golang.org/x/crypto/blake2b"
)

// ApiID identifies a runtime api by the blake2b-64 hash of its name.
type ApiID [8]byte

// NewApiID hashes the given api name.
func NewApiID(name string) ApiID {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(name))
	var id ApiID
	copy(id[:], h.Sum(nil))
	return id
}

// TryRuntimeApiID is the id a runtime compiled with try-runtime support exposes.
var TryRuntimeApiID = NewApiID("TryRuntime")

type ApiVersion struct {
	ID      ApiID
	Version uint32
}

// RuntimeVersion is the decoded output of Core_version.
type RuntimeVersion struct {
	SpecName           string
	ImplName           string
	AuthoringVersion   uint32
	SpecVersion        uint32
	ImplVersion        uint32
	Apis               []ApiVersion
	TransactionVersion uint32
	StateVersion       uint8
}

// HasApi reports whether the runtime exposes the given api.
func (v *RuntimeVersion) HasApi(id ApiID) bool {
	for _, api := range v.Apis {
		if api.ID == id {
			return true
		}
	}
	return false
}

func (v *RuntimeVersion) String() string {
	return fmt.Sprintf("%s-%d (%s-%d.tx%d.au%d)", v.SpecName, v.SpecVersion, v.ImplName, v.ImplVersion, v.TransactionVersion, v.AuthoringVersion)
}

type runtimeVersionV2 struct {
	SpecName         []byte
	ImplName         []byte
	AuthoringVersion uint32
	SpecVersion      uint32
	ImplVersion      uint32
	Apis             []ApiVersion
}

type runtimeVersionV3 struct {
	SpecName           []byte
	ImplName           []byte
	AuthoringVersion   uint32
	SpecVersion        uint32
	ImplVersion        uint32
	Apis               []ApiVersion
	TransactionVersion uint32
}

type runtimeVersionV4 struct {
	SpecName           []byte
	ImplName           []byte
	AuthoringVersion   uint32
	SpecVersion        uint32
	ImplVersion        uint32
	Apis               []ApiVersion
	TransactionVersion uint32
	StateVersion       uint8
}

// DecodeRuntimeVersion decodes the output of Core_version. Older runtimes
// omit the transaction and state version, these default to zero.
func DecodeRuntimeVersion(data []byte) (*RuntimeVersion, error) {
	var v4 runtimeVersionV4
	if err := scale.Unmarshal(data, &v4); err == nil {
		return v4.toVersion(), nil
	}
	var v3 runtimeVersionV3
	if err := scale.Unmarshal(data, &v3); err == nil {
		return &RuntimeVersion{
			SpecName:           string(v3.SpecName),
			ImplName:           string(v3.ImplName),
			AuthoringVersion:   v3.AuthoringVersion,
			SpecVersion:        v3.SpecVersion,
			ImplVersion:        v3.ImplVersion,
			Apis:               v3.Apis,
			TransactionVersion: v3.TransactionVersion,
		}, nil
	}
	var v2 runtimeVersionV2
	if err := scale.Unmarshal(data, &v2); err != nil {
		return nil, fmt.Errorf("cannot decode runtime version; %w", err)
	}
	return &RuntimeVersion{
		SpecName:         string(v2.SpecName),
		ImplName:         string(v2.ImplName),
		AuthoringVersion: v2.AuthoringVersion,
		SpecVersion:      v2.SpecVersion,
		ImplVersion:      v2.ImplVersion,
		Apis:             v2.Apis,
	}, nil
}

// EncodeRuntimeVersion returns the latest encoding of v.
func EncodeRuntimeVersion(v *RuntimeVersion) ([]byte, error) {
	return scale.Marshal(runtimeVersionV4{
		SpecName:           []byte(v.SpecName),
		ImplName:           []byte(v.ImplName),
		AuthoringVersion:   v.AuthoringVersion,
		SpecVersion:        v.SpecVersion,
		ImplVersion:        v.ImplVersion,
		Apis:               v.Apis,
		TransactionVersion: v.TransactionVersion,
		StateVersion:       v.StateVersion,
	})
}

func (v runtimeVersionV4) toVersion() *RuntimeVersion {
	return &RuntimeVersion{
		SpecName:           string(v.SpecName),
		ImplName:           string(v.ImplName),
		AuthoringVersion:   v.AuthoringVersion,
		SpecVersion:        v.SpecVersion,
		ImplVersion:        v.ImplVersion,
		Apis:               v.Apis,
		TransactionVersion: v.TransactionVersion,
		StateVersion:       v.StateVersion,
	}
}
