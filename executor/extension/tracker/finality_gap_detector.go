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
	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/executor"
	"github.com/0xsoniclabs/tryruntime/executor/extension"
	"github.com/0xsoniclabs/tryruntime/logger"
)

const (
	finalityGapFormat        = "Finalized heads skipped %d block(s) between #%d and #%d, only the head is executed"
	finalityRegressFormat    = "Finalized head #%d (%v) does not advance beyond #%d"
	finalityGapSummaryFormat = "Finality gaps: %d, skipped blocks: %d"
)

// MakeFinalityGapDetector creates an extension reporting finalized heads
// that skip block numbers or do not advance.
func MakeFinalityGapDetector(cfg *config.Config) executor.Extension {
	return makeFinalityGapDetector(logger.NewLogger(cfg.LogLevel, "Finality-Gap-Detector"))
}

func makeFinalityGapDetector(log logger.Logger) *finalityGapDetector {
	return &finalityGapDetector{log: log}
}

type finalityGapDetector struct {
	extension.NilExtension
	log     logger.Logger
	gaps    uint64
	skipped uint64
}

// PreBlock compares the block with the previously received head, which
// may be a head whose block could not be fetched.
func (d *finalityGapDetector) PreBlock(st executor.State, ctx *executor.Context) error {
	if ctx.Heads < 2 {
		return nil
	}

	last := ctx.PreviousHead
	switch {
	case st.Block <= last:
		d.log.Warningf(finalityRegressFormat, st.Block, st.Hash, last)
	case st.Block > last+1:
		missing := st.Block - last - 1
		d.gaps++
		d.skipped += missing
		d.log.Warningf(finalityGapFormat, missing, last, st.Block)
	}
	return nil
}

func (d *finalityGapDetector) PostRun(executor.State, *executor.Context, error) error {
	if d.gaps > 0 {
		d.log.Noticef(finalityGapSummaryFormat, d.gaps, d.skipped)
	}
	return nil
}
