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

//go:generate mockgen -source sandbox.go -destination sandbox_mock.go -package sandbox

import (
	"context"
	"errors"
	"strings"

	"github.com/0xsoniclabs/tryruntime/state"
)

// ErrTrap is wrapped by errors returned from Call when the runtime aborted
// while executing the entry point.
var ErrTrap = errors.New("runtime trapped")

// Extensions selects the host extensions registered for a call on top of
// the default execution environment.
type Extensions uint8

const (
	OffchainDbExtension Extensions = 1 << iota
	OffchainWorkerExtension
	KeystoreExtension
	TransactionPoolExtension

	NoExtensions   Extensions = 0
	FullExtensions            = OffchainDbExtension | OffchainWorkerExtension | KeystoreExtension | TransactionPoolExtension
)

var extensionNames = []string{"offchain-db", "offchain-worker", "keystore", "transaction-pool"}

// Has reports whether all extensions in x are selected.
func (e Extensions) Has(x Extensions) bool {
	return e&x == x
}

func (e Extensions) String() string {
	if e == NoExtensions {
		return "none"
	}
	var names []string
	for i, name := range extensionNames {
		if e.Has(1 << i) {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

// Request describes one invocation of a runtime entry point.
type Request struct {
	Method     string
	Args       []byte
	Extensions Extensions
}

// Response holds the outcome of a successful invocation. Changes are not
// applied to the execution context.
type Response struct {
	Changes *state.ChangeSet
	Output  []byte
}

// Sandbox executes the runtime code found under :code in the given
// execution context. Implementations only read from ext.
type Sandbox interface {
	// Call invokes an entry point. Errors caused by the runtime aborting
	// wrap ErrTrap.
	Call(ctx context.Context, ext *state.Externalities, req Request) (*Response, error)
	// Close releases the resources of the sandbox.
	Close() error
}
