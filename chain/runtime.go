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
	"bytes"
	"errors"
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// Runtime entry points invoked by the tool.
const (
	ExecuteBlockMethod     = "TryRuntime_execute_block"
	OnRuntimeUpgradeMethod = "TryRuntime_on_runtime_upgrade"
	CoreVersionMethod      = "Core_version"
)

// TryStateKind enumerates the variants of TryStateSelect in their
// encoding order.
type TryStateKind uint8

const (
	TryStateNone TryStateKind = iota
	TryStateAll
	TryStateRoundRobin
	TryStateOnly
)

// TryStateSelect chooses which try-state hooks run after a block.
type TryStateSelect struct {
	Kind TryStateKind
	// RoundRobin is the number of pallets checked per block.
	RoundRobin uint32
	// Pallets lists pallet names for TryStateOnly.
	Pallets []string
}

func (s TryStateSelect) String() string {
	switch s.Kind {
	case TryStateNone:
		return "none"
	case TryStateAll:
		return "all"
	case TryStateRoundRobin:
		return fmt.Sprintf("rr-%d", s.RoundRobin)
	case TryStateOnly:
		return fmt.Sprintf("only%v", s.Pallets)
	}
	return fmt.Sprintf("unknown(%d)", s.Kind)
}

// Encode returns the SCALE encoding of the selector.
func (s TryStateSelect) Encode() ([]byte, error) {
	switch s.Kind {
	case TryStateNone, TryStateAll:
		return []byte{byte(s.Kind)}, nil
	case TryStateRoundRobin:
		n, err := scale.Marshal(s.RoundRobin)
		if err != nil {
			return nil, err
		}
		return append([]byte{byte(s.Kind)}, n...), nil
	case TryStateOnly:
		names := make([][]byte, 0, len(s.Pallets))
		for _, p := range s.Pallets {
			names = append(names, []byte(p))
		}
		enc, err := scale.Marshal(names)
		if err != nil {
			return nil, err
		}
		return append([]byte{byte(s.Kind)}, enc...), nil
	}
	return nil, fmt.Errorf("unknown try-state kind %d", s.Kind)
}

// UpgradeCheckSelect chooses which checks run around a runtime upgrade.
type UpgradeCheckSelect uint8

const (
	UpgradeCheckNone UpgradeCheckSelect = iota
	UpgradeCheckAll
	UpgradeCheckPreAndPost
	UpgradeCheckTryState
)

func (s UpgradeCheckSelect) String() string {
	switch s {
	case UpgradeCheckNone:
		return "none"
	case UpgradeCheckAll:
		return "all"
	case UpgradeCheckPreAndPost:
		return "pre-and-post"
	case UpgradeCheckTryState:
		return "try-state"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

func (s UpgradeCheckSelect) Encode() []byte {
	return []byte{byte(s)}
}

// EncodeExecuteBlockArgs encodes the argument tuple of
// TryRuntime_execute_block.
func EncodeExecuteBlockArgs(block *Block, stateRootCheck, signatureCheck bool, sel TryStateSelect) ([]byte, error) {
	enc, err := block.Encode()
	if err != nil {
		return nil, fmt.Errorf("cannot encode block; %w", err)
	}
	buf := bytes.NewBuffer(enc)
	for _, flag := range []bool{stateRootCheck, signatureCheck} {
		b, err := scale.Marshal(flag)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	s, err := sel.Encode()
	if err != nil {
		return nil, fmt.Errorf("cannot encode try-state selector; %w", err)
	}
	buf.Write(s)
	return buf.Bytes(), nil
}

// Weight is a two dimensional resource quantity.
type Weight struct {
	RefTime   uint64
	ProofSize uint64
}

// AnyGt reports whether any component of w exceeds the one of o.
func (w Weight) AnyGt(o Weight) bool {
	return w.RefTime > o.RefTime || w.ProofSize > o.ProofSize
}

// WeightReport is the output of TryRuntime_on_runtime_upgrade.
type WeightReport struct {
	Consumed Weight
	Total    Weight
}

// RefTimePercent returns the consumed computation time relative to the
// budget; the budget is floored at 1.
func (r WeightReport) RefTimePercent() float64 {
	return percent(r.Consumed.RefTime, r.Total.RefTime)
}

// ProofSizePercent returns the consumed proof size relative to the budget;
// the budget is floored at 1.
func (r WeightReport) ProofSizePercent() float64 {
	return percent(r.Consumed.ProofSize, r.Total.ProofSize)
}

func percent(part, total uint64) float64 {
	return float64(part) / float64(max(total, 1)) * 100.0
}

// wire form, both components are compact encoded
type weightWire struct {
	RefTime   uint
	ProofSize uint
}

type weightReportWire struct {
	Consumed weightWire
	Total    weightWire
}

var ErrTrailingBytes = errors.New("trailing bytes after decoded value")

// DecodeWeightReport decodes a (Weight, Weight) tuple. All input bytes
// must be consumed.
func DecodeWeightReport(data []byte) (WeightReport, error) {
	var wire weightReportWire
	if err := scale.Unmarshal(data, &wire); err != nil {
		return WeightReport{}, err
	}
	enc, err := scale.Marshal(wire)
	if err != nil {
		return WeightReport{}, err
	}
	if len(enc) != len(data) {
		return WeightReport{}, fmt.Errorf("%w: %d of %d consumed", ErrTrailingBytes, len(enc), len(data))
	}
	return WeightReport{
		Consumed: Weight{RefTime: uint64(wire.Consumed.RefTime), ProofSize: uint64(wire.Consumed.ProofSize)},
		Total:    Weight{RefTime: uint64(wire.Total.RefTime), ProofSize: uint64(wire.Total.ProofSize)},
	}, nil
}

// EncodeWeightReport is the inverse of DecodeWeightReport.
func EncodeWeightReport(r WeightReport) ([]byte, error) {
	return scale.Marshal(weightReportWire{
		Consumed: weightWire{RefTime: uint(r.Consumed.RefTime), ProofSize: uint(r.Consumed.ProofSize)},
		Total:    weightWire{RefTime: uint(r.Total.RefTime), ProofSize: uint(r.Total.ProofSize)},
	})
}
