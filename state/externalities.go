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

package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Externalities is the execution context of sandboxed calls: a backend
// plus the state version recorded when the context was created. It is
// owned by a single engine and must not be shared between concurrent
// callers.
type Externalities struct {
	Backend      *Backend
	StateVersion StateVersion

	recorder *proofRecorder
}

// NewExternalities wraps a sealed backend.
func NewExternalities(backend *Backend, version StateVersion) *Externalities {
	return &Externalities{Backend: backend, StateVersion: version}
}

// Root returns the storage root of the underlying backend.
func (e *Externalities) Root() common.Hash {
	return e.Backend.Root()
}

// Storage reads a top level value. The lookup is recorded whether the key
// is present or not when a proof is being collected.
func (e *Externalities) Storage(key []byte) ([]byte, bool) {
	if e.recorder != nil {
		e.recorder.recordTop(key)
	}
	return e.Backend.Storage(key)
}

// ChildStorage reads a child trie value, recording the lookup when a proof
// is being collected.
func (e *Externalities) ChildStorage(storageKey, key []byte) ([]byte, bool) {
	if e.recorder != nil {
		e.recorder.recordChild(storageKey, key)
	}
	return e.Backend.ChildStorage(storageKey, key)
}

// NextKey returns the top level key following key. Both the start key and
// the key found are recorded.
func (e *Externalities) NextKey(key []byte) ([]byte, bool) {
	next, ok := e.Backend.NextKey(key)
	if e.recorder != nil {
		e.recorder.recordTop(key)
		if ok {
			e.recorder.recordTop(next)
		}
	}
	return next, ok
}

func (e *Externalities) NextChildKey(storageKey, key []byte) ([]byte, bool) {
	next, ok := e.Backend.NextChildKey(storageKey, key)
	if e.recorder != nil {
		e.recorder.recordChild(storageKey, key)
		if ok {
			e.recorder.recordChild(storageKey, next)
		}
	}
	return next, ok
}

// Code returns the runtime code stored in the state.
func (e *Externalities) Code() ([]byte, bool) {
	return e.Backend.Storage(CodeKey)
}

// StartProofRecording starts collecting the keys looked up in storage.
func (e *Externalities) StartProofRecording() {
	e.recorder = newProofRecorder()
}

// TakeProof stops recording and returns the proof of the recorded lookups
// against the current root of the backend, nil when recording was not
// started.
func (e *Externalities) TakeProof() (*Proof, error) {
	if e.recorder == nil {
		return nil, nil
	}
	recorder := e.recorder
	e.recorder = nil
	proof, err := recorder.generate(e.Backend)
	if err != nil {
		return nil, fmt.Errorf("cannot generate storage proof: %w", err)
	}
	return proof, nil
}

// Apply merges a storage diff into the backend.
func (e *Externalities) Apply(diff *StorageDiff) {
	e.Backend.ApplyTransaction(diff.TransactionRoot, diff.Transaction)
}

// Clone returns an independent copy of the context.
func (e *Externalities) Clone() *Externalities {
	return NewExternalities(e.Backend.Clone(), e.StateVersion)
}
