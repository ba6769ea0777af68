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

// Package statesource builds the execution context a runtime is executed
// against, either from a live node, from a snapshot file or from the
// current best state of a node.
package statesource

import (
	"fmt"

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/ethereum/go-ethereum/common"
)

// Source selects where the initial state comes from. It is one of Live,
// Snap or Existing.
type Source interface {
	fmt.Stringer
	isSource()
}

// Live downloads the state of a node at a given block.
type Live struct {
	URI string
	// At is the block the state is taken at, nil selects the finalized head.
	At *common.Hash
	// Pallets and HashedPrefixes restrict the downloaded keys. Both empty
	// downloads everything.
	Pallets        []string
	HashedPrefixes [][]byte
	ChildTree      bool
}

// Snap loads a snapshot file created by CreateSnapshot.
type Snap struct {
	Path string
}

// Existing downloads the current best state of a node including child tries.
type Existing struct {
	URI string
}

func (Live) isSource()     {}
func (Snap) isSource()     {}
func (Existing) isSource() {}

func (s Live) String() string {
	at := "finalized head"
	if s.At != nil {
		at = s.At.Hex()
	}
	return fmt.Sprintf("live state of %s at %s", s.URI, at)
}

func (s Snap) String() string {
	return fmt.Sprintf("snapshot %s", s.Path)
}

func (s Existing) String() string {
	return fmt.Sprintf("best state of %s", s.URI)
}

// FromConfig returns the source selected on the command line.
func FromConfig(cfg *config.Config) (Source, error) {
	switch cfg.StateSource {
	case config.LiveState:
		return Live{
			URI:            cfg.Uri,
			At:             cfg.At,
			Pallets:        cfg.Pallets,
			HashedPrefixes: cfg.HashedPrefixes,
			ChildTree:      cfg.ChildTree,
		}, nil
	case config.SnapState:
		return Snap{Path: cfg.SnapshotPath}, nil
	case config.ExistingState:
		return Existing{URI: cfg.Uri}, nil
	default:
		return nil, fmt.Errorf("unknown state source %q", cfg.StateSource)
	}
}
