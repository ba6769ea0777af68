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

package sandbox

import (
	"fmt"
	"plugin"
	"strings"
)

// ExecutionMethod selects how the runtime is executed.
type ExecutionMethod string

const (
	Compiled    ExecutionMethod = "compiled"
	Interpreted ExecutionMethod = "interpreted-i-know-what-i-do"
)

// ParseExecutionMethod parses the value of the wasm-execution option.
func ParseExecutionMethod(s string) (ExecutionMethod, error) {
	switch m := ExecutionMethod(strings.ToLower(s)); m {
	case Compiled, Interpreted:
		return m, nil
	default:
		return "", fmt.Errorf("unknown wasm execution method %q", s)
	}
}

// Options configure a sandbox.
type Options struct {
	// HeapPages is the number of 64KB pages available to the runtime,
	// zero selects the value stored under :heappages or the default.
	HeapPages uint64
	Method    ExecutionMethod
}

// ConstructorSymbol is the symbol an executor plugin has to export. Its
// type must be func(Options) (Sandbox, error).
const ConstructorSymbol = "NewSandbox"

// Open loads an executor plugin and creates a sandbox from it.
func Open(path string, opts Options) (Sandbox, error) {
	if path == "" {
		return nil, fmt.Errorf("executor plugin path is not set")
	}
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open executor plugin %s; %w", path, err)
	}
	sym, err := p.Lookup(ConstructorSymbol)
	if err != nil {
		return nil, fmt.Errorf("executor plugin %s; %w", path, err)
	}
	var constructor func(Options) (Sandbox, error)
	switch fn := sym.(type) {
	case func(Options) (Sandbox, error):
		constructor = fn
	case *func(Options) (Sandbox, error):
		constructor = *fn
	default:
		return nil, fmt.Errorf("executor plugin %s: %s has unexpected type %T", path, ConstructorSymbol, sym)
	}
	sb, err := constructor(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot create sandbox; %w", err)
	}
	return sb, nil
}
