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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
)

// Well known storage keys.
var (
	CodeKey             = []byte(":code")
	HeapPagesKey        = []byte(":heappages")
	ChildStorageKeyRoot = []byte(":child_storage:")
	DefaultChildPrefix  = []byte(":child_storage:default:")
)

const memdbCapacity = 1 << 20

// Backend is an in-memory key/value store holding the top trie and any
// number of child tries. Its root only changes through ApplyTransaction.
type Backend struct {
	top      *memdb.DB
	children map[string]*memdb.DB
	root     common.Hash
	version  StateVersion
}

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	return &Backend{
		top:      memdb.New(comparer.DefaultComparer, memdbCapacity),
		children: make(map[string]*memdb.DB),
		root:     EmptyRoot,
	}
}

// Insert adds a top level entry while the backend is being populated.
// Call Seal once all entries have been inserted.
func (b *Backend) Insert(key, value []byte) {
	// memdb.Put only fails on a closed db
	_ = b.top.Put(key, value)
}

// InsertChild adds an entry to the child trie under storageKey (the full
// prefixed child storage key).
func (b *Backend) InsertChild(storageKey, key, value []byte) {
	_ = b.child(storageKey).Put(key, value)
}

// Seal recomputes the child roots stored in the top trie and the root of
// the top trie under the given version.
func (b *Backend) Seal(version StateVersion) (common.Hash, error) {
	if !version.Valid() {
		return common.Hash{}, fmt.Errorf("invalid state version %d", version)
	}
	for storageKey, db := range b.children {
		if db.Len() == 0 {
			_ = b.top.Delete([]byte(storageKey))
			continue
		}
		root, err := rootOf(db, version)
		if err != nil {
			return common.Hash{}, fmt.Errorf("cannot compute root of child trie 0x%x: %w", storageKey, err)
		}
		_ = b.top.Put([]byte(storageKey), root[:])
	}
	root, err := rootOf(b.top, version)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot compute state root: %w", err)
	}
	b.root, b.version = root, version
	return b.root, nil
}

// Root returns the current storage root.
func (b *Backend) Root() common.Hash {
	return b.root
}

// Version returns the state version the current root was computed with.
func (b *Backend) Version() StateVersion {
	return b.version
}

// Storage returns the value stored under key.
func (b *Backend) Storage(key []byte) ([]byte, bool) {
	return get(b.top, key)
}

// ChildStorage returns the value stored under key in the given child trie.
func (b *Backend) ChildStorage(storageKey, key []byte) ([]byte, bool) {
	db, ok := b.children[string(storageKey)]
	if !ok {
		return nil, false
	}
	return get(db, key)
}

// NextKey returns the smallest top level key strictly greater than key.
func (b *Backend) NextKey(key []byte) ([]byte, bool) {
	return nextKey(b.top, key)
}

// NextChildKey returns the smallest key of a child trie strictly greater than key.
func (b *Backend) NextChildKey(storageKey, key []byte) ([]byte, bool) {
	db, ok := b.children[string(storageKey)]
	if !ok {
		return nil, false
	}
	return nextKey(db, key)
}

// Len returns the number of top level entries.
func (b *Backend) Len() int {
	return b.top.Len()
}

// ChildKeys returns the storage keys of all child tries.
func (b *Backend) ChildKeys() [][]byte {
	keys := make([][]byte, 0, len(b.children))
	for k := range b.children {
		keys = append(keys, []byte(k))
	}
	sortKeys(keys)
	return keys
}

// ForEach visits all top level entries in key order.
func (b *Backend) ForEach(fn func(key, value []byte) error) error {
	return forEach(b.top, fn)
}

// ForEachChild visits all entries of a child trie in key order.
func (b *Backend) ForEachChild(storageKey []byte, fn func(key, value []byte) error) error {
	db, ok := b.children[string(storageKey)]
	if !ok {
		return nil
	}
	return forEach(db, fn)
}

// Clone returns a deep copy of the backend.
func (b *Backend) Clone() *Backend {
	c := NewBackend()
	_ = forEach(b.top, func(k, v []byte) error {
		c.Insert(k, v)
		return nil
	})
	for storageKey, db := range b.children {
		_ = forEach(db, func(k, v []byte) error {
			c.InsertChild([]byte(storageKey), k, v)
			return nil
		})
	}
	c.root, c.version = b.root, b.version
	return c
}

// StorageRoot computes the root the backend would have after applying
// the given mutations, without modifying it. The returned transaction
// contains the top level mutations including updated child roots.
func (b *Backend) StorageRoot(top []KeyMutation, children []ChildMutations, version StateVersion) (common.Hash, *Transaction, error) {
	if !version.Valid() {
		return common.Hash{}, nil, fmt.Errorf("invalid state version %d", version)
	}
	tx := &Transaction{Children: children, Version: version}
	childRoots := make(map[string][]byte)
	for _, child := range children {
		if !bytes.HasPrefix(child.StorageKey, ChildStorageKeyRoot) {
			return common.Hash{}, nil, fmt.Errorf("invalid child storage key %x", child.StorageKey)
		}
		overlay := copyDB(b.children[string(child.StorageKey)])
		applyMutations(overlay, child.Mutations)
		if overlay.Len() == 0 {
			childRoots[string(child.StorageKey)] = nil
			continue
		}
		root, err := rootOf(overlay, version)
		if err != nil {
			return common.Hash{}, nil, fmt.Errorf("cannot compute root of child trie 0x%x: %w", child.StorageKey, err)
		}
		childRoots[string(child.StorageKey)] = root[:]
	}

	merged := make(map[string]KeyMutation, len(top)+len(childRoots))
	for _, m := range top {
		merged[string(m.Key)] = m
	}
	for k, root := range childRoots {
		merged[k] = KeyMutation{Key: []byte(k), Value: root, Deleted: root == nil}
	}
	tx.Top = sortedMutations(merged)

	overlay := copyDB(b.top)
	applyMutations(overlay, tx.Top)
	root, err := rootOf(overlay, version)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("cannot compute state root: %w", err)
	}
	return root, tx, nil
}

// ApplyTransaction writes the transaction into the backend and sets its
// root to the given one, computed under the transaction's version.
func (b *Backend) ApplyTransaction(root common.Hash, tx *Transaction) {
	for _, child := range tx.Children {
		db := b.child(child.StorageKey)
		applyMutations(db, child.Mutations)
		if db.Len() == 0 {
			delete(b.children, string(child.StorageKey))
		}
	}
	applyMutations(b.top, tx.Top)
	b.root, b.version = root, tx.Version
}

func (b *Backend) child(storageKey []byte) *memdb.DB {
	db, ok := b.children[string(storageKey)]
	if !ok {
		db = memdb.New(comparer.DefaultComparer, 0)
		b.children[string(storageKey)] = db
	}
	return db
}

func get(db *memdb.DB, key []byte) ([]byte, bool) {
	value, err := db.Get(key)
	if err != nil {
		return nil, false
	}
	return bytes.Clone(value), true
}

func nextKey(db *memdb.DB, key []byte) ([]byte, bool) {
	it := db.NewIterator(nil)
	defer it.Release()
	if !it.Seek(key) {
		return nil, false
	}
	if bytes.Equal(it.Key(), key) && !it.Next() {
		return nil, false
	}
	return bytes.Clone(it.Key()), true
}

func forEach(db *memdb.DB, fn func(key, value []byte) error) error {
	it := db.NewIterator(nil)
	defer it.Release()
	for it.Next() {
		if err := fn(bytes.Clone(it.Key()), bytes.Clone(it.Value())); err != nil {
			return err
		}
	}
	return it.Error()
}

func copyDB(db *memdb.DB) *memdb.DB {
	c := memdb.New(comparer.DefaultComparer, 0)
	if db == nil {
		return c
	}
	_ = forEach(db, func(k, v []byte) error {
		return c.Put(k, v)
	})
	return c
}

func applyMutations(db *memdb.DB, mutations []KeyMutation) {
	for _, m := range mutations {
		if m.Deleted {
			_ = db.Delete(m.Key)
		} else {
			_ = db.Put(m.Key, m.Value)
		}
	}
}
