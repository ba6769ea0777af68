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

package tracker

import (
	"testing"

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/executor"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestFinalityGapDetector_IsAlwaysCreated(t *testing.T) {
	ext := MakeFinalityGapDetector(&config.Config{LogLevel: "critical"})
	if _, ok := ext.(*finalityGapDetector); !ok {
		t.Errorf("unexpected extension type %T", ext)
	}
}

// receiveHeads passes the heads through the detector the way the
// follow-chain engine does. Heads listed in unfetched never reach PreBlock.
func receiveHeads(t *testing.T, ext executor.Extension, heads []executor.State, unfetched map[uint64]bool) {
	t.Helper()
	ctx := &executor.Context{}
	for _, st := range heads {
		ctx.Heads++
		if !unfetched[st.Block] {
			require.NoError(t, ext.PreBlock(st, ctx))
		}
		ctx.PreviousHead = st.Block
	}
	require.NoError(t, ext.PostRun(executor.State{}, ctx, nil))
}

func numbered(blocks ...uint64) []executor.State {
	heads := make([]executor.State, 0, len(blocks))
	for _, b := range blocks {
		heads = append(heads, executor.State{Block: b})
	}
	return heads
}

func TestFinalityGapDetector_ConsecutiveHeadsAreQuiet(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := makeFinalityGapDetector(logger.NewMockLogger(ctrl))

	receiveHeads(t, ext, numbered(10, 11, 12, 13, 14), nil)
}

func TestFinalityGapDetector_ReportsGaps(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)
	ext := makeFinalityGapDetector(log)

	gomock.InOrder(
		log.EXPECT().Warningf(finalityGapFormat, uint64(2), uint64(10), uint64(13)),
		log.EXPECT().Warningf(finalityGapFormat, uint64(1), uint64(14), uint64(16)),
		log.EXPECT().Noticef(finalityGapSummaryFormat, uint64(2), uint64(3)),
	)

	receiveHeads(t, ext, numbered(10, 13, 14, 16), nil)
}

func TestFinalityGapDetector_UnfetchedBlocksAreNoGap(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)
	ext := makeFinalityGapDetector(log)

	// only the real gap between 13 and 16 is reported
	gomock.InOrder(
		log.EXPECT().Warningf(finalityGapFormat, uint64(2), uint64(13), uint64(16)),
		log.EXPECT().Noticef(finalityGapSummaryFormat, uint64(1), uint64(2)),
	)

	receiveHeads(t, ext, numbered(10, 11, 12, 13, 16), map[uint64]bool{11: true, 12: true})
}

func TestFinalityGapDetector_ReportsHeadsNotAdvancing(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)
	ext := makeFinalityGapDetector(log)

	hash := common.HexToHash("0x05")
	log.EXPECT().Warningf(finalityRegressFormat, uint64(5), hash, uint64(5))

	receiveHeads(t, ext, []executor.State{{Block: 5}, {Block: 5, Hash: hash}, {Block: 6}}, nil)
}
