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

package executor

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrStreamOpen is returned when the finalized heads stream cannot be opened.
	ErrStreamOpen = errors.New("cannot open finalized heads stream")
	// ErrWeightExceeded is returned when a migration consumes more weight than a block allows.
	ErrWeightExceeded = errors.New("consumed weight exceeds the block weight limit")
	// ErrNotIdempotent is returned when running a migration twice changes the state twice.
	ErrNotIdempotent = errors.New("migration is not idempotent")
)

// CallErrorKind classifies the failures of the call pipeline.
type CallErrorKind int

const (
	// TrapError marks a runtime that aborted while executing the entry point.
	TrapError CallErrorKind = iota
	// DecodeError marks output that cannot be decoded into the expected type.
	DecodeError
	// ProofExportError marks a proof that could not be written.
	ProofExportError
)

func (k CallErrorKind) String() string {
	switch k {
	case TrapError:
		return "trap"
	case DecodeError:
		return "decode error"
	case ProofExportError:
		return "proof export error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// CallError is returned by the call pipeline.
type CallError struct {
	Kind   CallErrorKind
	Method string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%v in %s; %v", e.Kind, e.Method, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsCallError reports whether err is a CallError of the given kind.
func IsCallError(err error, kind CallErrorKind) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Kind == kind
}

type PanicError struct {
	message string
	stack   []byte
}

func NewPanicError(message string, stack []byte) *PanicError {
	return &PanicError{
		message: message,
		stack:   stack,
	}
}

// Error includes the stack of the recovered panic.
func (e *PanicError) Error() string {
	return fmt.Sprintf("PanicError: %s\nStack Trace:\n%s", e.message, string(e.stack))
}
