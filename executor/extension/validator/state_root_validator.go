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

package validator

import (
	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/executor"
	"github.com/0xsoniclabs/tryruntime/executor/extension"
	"github.com/0xsoniclabs/tryruntime/logger"
)

// MakeStateRootValidator creates an extension comparing the state root of
// the execution context after each block with the root declared by the
// block header. Mismatches are logged and counted, they do not stop the run.
func MakeStateRootValidator(cfg *config.Config) executor.Extension {
	if !cfg.ValidateStateRoot {
		return extension.NilExtension{}
	}

	log := logger.NewLogger(cfg.LogLevel, "State-Root-Validator")
	return makeStateRootValidator(log)
}

func makeStateRootValidator(log logger.Logger) *stateRootValidator {
	return &stateRootValidator{log: log}
}

type stateRootValidator struct {
	extension.NilExtension
	log        logger.Logger
	checked    uint64
	mismatches uint64
}

func (v *stateRootValidator) PostBlock(st executor.State, ctx *executor.Context) error {
	if st.Header == nil || ctx.Externalities == nil {
		return nil
	}

	v.checked++
	// NOTE: once the roots diverge every following block diverges too
	want := st.Header.StateRoot
	got := ctx.Externalities.Root()
	if want != got {
		v.mismatches++
		v.log.Errorf("Unexpected state root after block #%d (%v)\nwanted %v\n   got %v", st.Block, st.Hash, want, got)
	}
	return nil
}

func (v *stateRootValidator) PostRun(executor.State, *executor.Context, error) error {
	if v.mismatches > 0 {
		v.log.Warningf("State root of %d out of %d blocks did not match", v.mismatches, v.checked)
		return nil
	}
	v.log.Noticef("State root of %d blocks validated", v.checked)
	return nil
}
