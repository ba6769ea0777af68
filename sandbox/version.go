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
	"context"
	"fmt"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/state"
)

// RuntimeVersion asks the runtime in ext for its version.
func RuntimeVersion(ctx context.Context, sb Sandbox, ext *state.Externalities) (*chain.RuntimeVersion, error) {
	res, err := sb.Call(ctx, ext, Request{Method: chain.CoreVersionMethod, Extensions: NoExtensions})
	if err != nil {
		return nil, fmt.Errorf("cannot call %s; %w", chain.CoreVersionMethod, err)
	}
	version, err := chain.DecodeRuntimeVersion(res.Output)
	if err != nil {
		return nil, fmt.Errorf("cannot decode runtime version; %w", err)
	}
	return version, nil
}
