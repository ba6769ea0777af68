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

	"github.com/ChainSafe/gossamer/pkg/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb/memdb"
)

// EmptyRoot is the root of a trie without entries.
var EmptyRoot = common.Hash(trie.EmptyHash)

// layout returns the trie layout a state version hashes with.
func (v StateVersion) layout() trie.TrieLayout {
	if v == StateV1 {
		return trie.V1
	}
	return trie.V0
}

// buildTrie loads all entries of db into a merkle trie of the given version.
func buildTrie(db *memdb.DB, version StateVersion) (*trie.Trie, error) {
	t := trie.NewEmptyTrie()
	t.SetVersion(version.layout())
	err := forEach(db, func(key, value []byte) error {
		if err := t.Put(key, value); err != nil {
			return fmt.Errorf("cannot insert key 0x%x: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// rootOf computes the trie root of all entries of db.
func rootOf(db *memdb.DB, version StateVersion) (common.Hash, error) {
	t, err := buildTrie(db, version)
	if err != nil {
		return common.Hash{}, err
	}
	root, err := t.Hash()
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot hash trie: %w", err)
	}
	return common.Hash(root), nil
}
