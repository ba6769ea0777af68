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

package state

import "fmt"

// StateVersion selects the trie layout used to compute storage roots.
type StateVersion uint8

const (
	StateV0 StateVersion = 0
	StateV1 StateVersion = 1
)

func (v StateVersion) Valid() bool {
	return v == StateV0 || v == StateV1
}

func (v StateVersion) String() string {
	return fmt.Sprintf("V%d", uint8(v))
}
