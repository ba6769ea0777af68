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

package profiler

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/executor"
	"github.com/0xsoniclabs/tryruntime/executor/extension"
)

// MakeMemoryProfiler creates an executor.Extension that records memory profiling data if enabled in the configuration.
func MakeMemoryProfiler(cfg *config.Config) executor.Extension {
	if cfg.MemoryProfile == "" {
		return extension.NilExtension{}
	}
	return &memoryProfiler{cfg: cfg}
}

type memoryProfiler struct {
	extension.NilExtension
	cfg *config.Config
}

// PostRun writes a heap profile of the state kept in memory at the end of the run.
func (p *memoryProfiler) PostRun(executor.State, *executor.Context, error) (err error) {
	f, err := os.Create(p.cfg.MemoryProfile)
	if err != nil {
		return fmt.Errorf("cannot create memory profile; %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	runtime.GC()
	if err = pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("cannot write memory profile; %w", err)
	}
	return nil
}
