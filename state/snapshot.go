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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/klauspost/compress/gzip"
)

const snapshotFormatVersion = 1

// Snapshot is a point in time copy of the state of a chain.
type Snapshot struct {
	StateVersion StateVersion
	BlockHash    common.Hash
	Backend      *Backend
}

type snapshotPair struct {
	Key   []byte
	Value []byte
}

type snapshotChild struct {
	StorageKey []byte
	Pairs      []snapshotPair
}

type snapshotWire struct {
	Format       uint8
	StateVersion uint8
	BlockHash    [32]byte
	Top          []snapshotPair
	Children     []snapshotChild
}

// WriteSnapshot stores the snapshot as a gzip compressed file. Existing
// files are overwritten.
func WriteSnapshot(path string, snap *Snapshot) (err error) {
	wire := snapshotWire{
		Format:       snapshotFormatVersion,
		StateVersion: uint8(snap.StateVersion),
		BlockHash:    snap.BlockHash,
	}
	if err = snap.Backend.ForEach(func(k, v []byte) error {
		wire.Top = append(wire.Top, snapshotPair{Key: k, Value: v})
		return nil
	}); err != nil {
		return err
	}
	for _, storageKey := range snap.Backend.ChildKeys() {
		child := snapshotChild{StorageKey: storageKey}
		if err = snap.Backend.ForEachChild(storageKey, func(k, v []byte) error {
			child.Pairs = append(child.Pairs, snapshotPair{Key: k, Value: v})
			return nil
		}); err != nil {
			return err
		}
		wire.Children = append(wire.Children, child)
	}

	data, err := scale.Marshal(wire)
	if err != nil {
		return fmt.Errorf("cannot encode snapshot; %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create snapshot file; %w", err)
	}
	zw := gzip.NewWriter(file)
	buffer := bufio.NewWriter(zw)
	defer func() {
		err = errors.Join(err, buffer.Flush(), zw.Close(), file.Close())
	}()

	_, err = buffer.Write(data)
	return err
}

// ReadSnapshot loads a snapshot written by WriteSnapshot. The returned
// backend is sealed with the recorded state version.
func ReadSnapshot(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open snapshot file; %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s is not a gzip file; %w", path, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot; %w", err)
	}

	var wire snapshotWire
	if err = scale.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("cannot decode snapshot; %w", err)
	}
	if wire.Format != snapshotFormatVersion {
		return nil, fmt.Errorf("unsupported snapshot format %d", wire.Format)
	}

	backend := NewBackend()
	for _, p := range wire.Top {
		backend.Insert(p.Key, p.Value)
	}
	for _, c := range wire.Children {
		for _, p := range c.Pairs {
			backend.InsertChild(c.StorageKey, p.Key, p.Value)
		}
	}
	version := StateVersion(wire.StateVersion)
	if _, err = backend.Seal(version); err != nil {
		return nil, err
	}
	return &Snapshot{StateVersion: version, BlockHash: wire.BlockHash, Backend: backend}, nil
}
