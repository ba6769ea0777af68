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
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// KeyMutation is a single write or deletion.
type KeyMutation struct {
	Key     []byte
	Value   []byte
	Deleted bool
}

// ChildMutations are the mutations of one child trie.
type ChildMutations struct {
	StorageKey []byte
	Mutations  []KeyMutation
}

// Transaction is the ordered set of mutations to apply to a backend.
type Transaction struct {
	Top      []KeyMutation
	Children []ChildMutations
	// Version is the state version the transaction root was computed with.
	Version StateVersion
}

// Touches reports whether the transaction writes or deletes key in the top trie.
func (t *Transaction) Touches(key []byte) bool {
	i := sort.Search(len(t.Top), func(i int) bool {
		return bytes.Compare(t.Top[i].Key, key) >= 0
	})
	return i < len(t.Top) && bytes.Equal(t.Top[i].Key, key)
}

// Len returns the number of mutations including child trie mutations.
func (t *Transaction) Len() int {
	n := len(t.Top)
	for _, c := range t.Children {
		n += len(c.Mutations)
	}
	return n
}

// StorageDiff is the result of draining a change-set against a backend.
type StorageDiff struct {
	TransactionRoot common.Hash
	Transaction     *Transaction
}

var ErrChangesDrained = errors.New("storage changes already drained")

// ChangeSet collects the storage changes of one sandboxed call. Nil values
// mark deletions.
type ChangeSet struct {
	top      map[string][]byte
	children map[string]map[string][]byte
	drained  bool
}

// NewChangeSet creates an empty change-set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		top:      make(map[string][]byte),
		children: make(map[string]map[string][]byte),
	}
}

func (c *ChangeSet) Set(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	c.top[string(key)] = bytes.Clone(value)
}

func (c *ChangeSet) Delete(key []byte) {
	c.top[string(key)] = nil
}

func (c *ChangeSet) SetChild(storageKey, key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	c.childChanges(storageKey)[string(key)] = bytes.Clone(value)
}

func (c *ChangeSet) DeleteChild(storageKey, key []byte) {
	c.childChanges(storageKey)[string(key)] = nil
}

// Get returns the pending change for key. The second result is false when
// key has not been touched.
func (c *ChangeSet) Get(key []byte) ([]byte, bool) {
	v, ok := c.top[string(key)]
	return v, ok
}

// Len returns the number of touched keys.
func (c *ChangeSet) Len() int {
	n := len(c.top)
	for _, child := range c.children {
		n += len(child)
	}
	return n
}

// Drain converts the change-set into a storage diff computed against the
// backend with the given state version. A change-set can be drained once.
func (c *ChangeSet) Drain(backend *Backend, version StateVersion) (*StorageDiff, error) {
	if c.drained {
		return nil, ErrChangesDrained
	}
	top := make(map[string]KeyMutation, len(c.top))
	for k, v := range c.top {
		top[k] = KeyMutation{Key: []byte(k), Value: v, Deleted: v == nil}
	}

	storageKeys := make([][]byte, 0, len(c.children))
	for k := range c.children {
		storageKeys = append(storageKeys, []byte(k))
	}
	sortKeys(storageKeys)
	children := make([]ChildMutations, 0, len(storageKeys))
	for _, storageKey := range storageKeys {
		changes := c.children[string(storageKey)]
		mutations := make(map[string]KeyMutation, len(changes))
		for k, v := range changes {
			mutations[k] = KeyMutation{Key: []byte(k), Value: v, Deleted: v == nil}
		}
		children = append(children, ChildMutations{StorageKey: storageKey, Mutations: sortedMutations(mutations)})
	}

	root, tx, err := backend.StorageRoot(sortedMutations(top), children, version)
	if err != nil {
		return nil, fmt.Errorf("cannot compute storage root; %w", err)
	}
	c.top = nil
	c.children = nil
	c.drained = true
	return &StorageDiff{TransactionRoot: root, Transaction: tx}, nil
}

func (c *ChangeSet) childChanges(storageKey []byte) map[string][]byte {
	m, ok := c.children[string(storageKey)]
	if !ok {
		m = make(map[string][]byte)
		c.children[string(storageKey)] = m
	}
	return m
}

func sortedMutations(m map[string]KeyMutation) []KeyMutation {
	out := make([]KeyMutation, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Key, out[j].Key) < 0
	})
	return out
}

func sortKeys(keys [][]byte) {
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	})
}
