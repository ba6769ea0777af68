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
	"encoding/json"
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/ChainSafe/gossamer/pkg/trie"
	"github.com/ChainSafe/gossamer/pkg/trie/codec"
	"github.com/ChainSafe/gossamer/pkg/trie/node"
	"github.com/ChainSafe/gossamer/pkg/trie/proof"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Proof is a storage proof of one call: the encoded trie nodes on the
// paths of every key the call looked up, present or not, plus the values
// stored out of line under StateV1. The root node of each visited trie is
// always included, other nodes only when they are not inlined in their
// parent.
type Proof struct {
	Nodes [][]byte
}

// Len returns the number of nodes.
func (p *Proof) Len() int {
	return len(p.Nodes)
}

// Encode returns the proof encoded as a list of byte vectors.
func (p *Proof) Encode() []byte {
	var buf bytes.Buffer
	writeCompact(&buf, uint64(len(p.Nodes)))
	for _, n := range p.Nodes {
		writeCompact(&buf, uint64(len(n)))
		buf.Write(n)
	}
	return buf.Bytes()
}

// Verify checks that the proof holds key under root. A non-empty value
// must match the stored one.
func (p *Proof) Verify(root common.Hash, key, value []byte) error {
	return proof.Verify(p.Nodes, root[:], key, value)
}

// EncodedSize returns the length of Encode.
func (p *Proof) EncodedSize() int {
	return len(p.Encode())
}

type jsonProof struct {
	Proof []hexutil.Bytes `json:"proof"`
}

func (p *Proof) MarshalJSON() ([]byte, error) {
	enc := jsonProof{Proof: make([]hexutil.Bytes, 0, len(p.Nodes))}
	for _, n := range p.Nodes {
		enc.Proof = append(enc.Proof, n)
	}
	return json.Marshal(enc)
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var dec jsonProof
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}
	p.Nodes = make([][]byte, 0, len(dec.Proof))
	for _, n := range dec.Proof {
		p.Nodes = append(p.Nodes, n)
	}
	return nil
}

func writeCompact(buf *bytes.Buffer, n uint64) {
	enc, err := scale.Marshal(uint(n))
	if err != nil {
		// compact encoding of an unsigned integer cannot fail
		panic(err)
	}
	buf.Write(enc)
}

type keySet struct {
	seen map[string]struct{}
	keys [][]byte
}

func (s *keySet) add(key []byte) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[string(key)]; ok {
		return
	}
	s.seen[string(key)] = struct{}{}
	s.keys = append(s.keys, bytes.Clone(key))
}

// proofRecorder keeps the distinct keys looked up while recording, in
// first-access order.
type proofRecorder struct {
	top        keySet
	children   map[string]*keySet
	childOrder [][]byte
}

func newProofRecorder() *proofRecorder {
	return &proofRecorder{children: make(map[string]*keySet)}
}

func (r *proofRecorder) recordTop(key []byte) {
	r.top.add(key)
}

// recordChild records a child trie lookup together with the lookup of the
// child root in the top trie.
func (r *proofRecorder) recordChild(storageKey, key []byte) {
	r.top.add(storageKey)
	set, ok := r.children[string(storageKey)]
	if !ok {
		set = &keySet{}
		r.children[string(storageKey)] = set
		r.childOrder = append(r.childOrder, bytes.Clone(storageKey))
	}
	set.add(key)
}

// generate exports the trie nodes on the recorded paths of b.
func (r *proofRecorder) generate(b *Backend) (*Proof, error) {
	p := &proofBuilder{seen: make(map[string]struct{})}
	top, err := buildTrie(b.top, b.version)
	if err != nil {
		return nil, err
	}
	if err = p.walk(top, r.top.keys); err != nil {
		return nil, err
	}
	for _, storageKey := range r.childOrder {
		db, ok := b.children[string(storageKey)]
		if !ok {
			// absence is shown by the path to storageKey in the top trie
			continue
		}
		child, err := buildTrie(db, b.version)
		if err != nil {
			return nil, err
		}
		if err = p.walk(child, r.children[string(storageKey)].keys); err != nil {
			return nil, fmt.Errorf("child trie 0x%x: %w", storageKey, err)
		}
	}
	return &Proof{Nodes: p.nodes}, nil
}

type proofBuilder struct {
	seen  map[string]struct{}
	nodes [][]byte
}

func (p *proofBuilder) add(n []byte) {
	if _, ok := p.seen[string(n)]; ok {
		return
	}
	p.seen[string(n)] = struct{}{}
	p.nodes = append(p.nodes, n)
}

func (p *proofBuilder) walk(t *trie.Trie, keys [][]byte) error {
	root, err := t.Hash()
	if err != nil {
		return fmt.Errorf("cannot hash trie: %w", err)
	}
	if root == trie.EmptyHash {
		p.add([]byte{0x00})
		return nil
	}
	rootNode := t.RootNode()
	for _, key := range keys {
		if err = p.walkKey(rootNode, key); err != nil {
			return err
		}
	}
	return nil
}

// walkKey adds the nodes a lookup of key reads, stopping where the path
// leaves the trie.
func (p *proofBuilder) walkKey(n *node.Node, key []byte) error {
	nibbles := codec.KeyLEToNibbles(key)
	for depth := 0; n != nil; depth++ {
		var buf bytes.Buffer
		if err := n.Encode(&buf); err != nil {
			return fmt.Errorf("cannot encode trie node: %w", err)
		}
		if depth == 0 || buf.Len() >= 32 {
			p.add(buf.Bytes())
		}
		if !bytes.HasPrefix(nibbles, n.PartialKey) {
			return nil
		}
		nibbles = nibbles[len(n.PartialKey):]
		if len(nibbles) == 0 {
			if n.MustBeHashed && n.StorageValue != nil {
				p.add(bytes.Clone(n.StorageValue))
			}
			return nil
		}
		if n.Kind() != node.Branch {
			return nil
		}
		n, nibbles = n.Children[nibbles[0]], nibbles[1:]
	}
	return nil
}
