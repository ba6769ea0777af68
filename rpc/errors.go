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

package rpc

import (
	"errors"
	"fmt"
)

// ErrBlockNotFound is returned when the node does not know the requested block.
var ErrBlockNotFound = errors.New("block not found")

// FormatMismatchError is returned when a result of the node cannot be
// parsed, usually because the remote block format differs from the local one.
type FormatMismatchError struct {
	Method string
	Err    error
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("cannot parse result of %s, remote format does not match the local codebase; %v", e.Method, e.Err)
}

func (e *FormatMismatchError) Unwrap() error {
	return e.Err
}
