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

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseTryStateSelect parses all, none, rr-<n> or a comma separated
// list of pallet names.
func ParseTryStateSelect(s string) (chain.TryStateSelect, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "all":
		return chain.TryStateSelect{Kind: chain.TryStateAll}, nil
	case "none":
		return chain.TryStateSelect{Kind: chain.TryStateNone}, nil
	}
	if rest, ok := strings.CutPrefix(normalized, "rr-"); ok {
		n, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return chain.TryStateSelect{}, fmt.Errorf("invalid round robin count %q; %w", rest, err)
		}
		return chain.TryStateSelect{Kind: chain.TryStateRoundRobin, RoundRobin: uint32(n)}, nil
	}
	var pallets []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pallets = append(pallets, p)
		}
	}
	if len(pallets) == 0 {
		return chain.TryStateSelect{}, fmt.Errorf("invalid try-state selection %q", s)
	}
	return chain.TryStateSelect{Kind: chain.TryStateOnly, Pallets: pallets}, nil
}

// ParseUpgradeCheckSelect parses the checks run by on-runtime-upgrade.
// An empty value selects all checks.
func ParseUpgradeCheckSelect(s string) (chain.UpgradeCheckSelect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return chain.UpgradeCheckNone, nil
	case "all", "true", "":
		return chain.UpgradeCheckAll, nil
	case "pre-and-post", "preandpost":
		return chain.UpgradeCheckPreAndPost, nil
	case "try-state", "trystate":
		return chain.UpgradeCheckTryState, nil
	default:
		return 0, fmt.Errorf("invalid checks %q, expected none, all, pre-and-post or try-state", s)
	}
}

// ParseStateVersion parses 0 or 1.
func ParseStateVersion(s string) (state.StateVersion, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil || !state.StateVersion(n).Valid() {
		return 0, fmt.Errorf("invalid state version %q, expected 0 or 1", s)
	}
	return state.StateVersion(n), nil
}

// Runtime selects the code executed by the sandbox.
type Runtime struct {
	// Path of the wasm blob, empty when the code in the state is used.
	Path string
}

func (r Runtime) Existing() bool {
	return r.Path == ""
}

func (r Runtime) String() string {
	if r.Existing() {
		return "existing"
	}
	return r.Path
}

// ParseRuntime parses existing or a path to a wasm blob.
func ParseRuntime(s string) (Runtime, error) {
	if s == "" {
		return Runtime{}, fmt.Errorf("runtime must be 'existing' or a path")
	}
	if strings.ToLower(s) == "existing" {
		return Runtime{}, nil
	}
	return Runtime{Path: s}, nil
}

// ParseBlockHash parses an optional hex encoded block hash.
func ParseBlockHash(s string) (*common.Hash, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		if !strings.HasPrefix(s, "0x") {
			b, err = hexutil.Decode("0x" + s)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid block hash %q; %w", s, err)
		}
	}
	if len(b) != common.HashLength {
		return nil, fmt.Errorf("invalid block hash %q, expected %d bytes", s, common.HashLength)
	}
	h := common.BytesToHash(b)
	return &h, nil
}

// ParseHashedPrefixes decodes hex encoded storage key prefixes.
func ParseHashedPrefixes(prefixes []string) ([][]byte, error) {
	out := make([][]byte, 0, len(prefixes))
	for _, p := range prefixes {
		if !strings.HasPrefix(p, "0x") {
			p = "0x" + p
		}
		b, err := hexutil.Decode(p)
		if err != nil {
			return nil, fmt.Errorf("invalid prefix %q; %w", p, err)
		}
		out = append(out, b)
	}
	return out, nil
}
