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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/sandbox"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

// CallResult is the outcome of a successful runtime call. The changes are
// not yet applied to the execution context.
type CallResult struct {
	Method  string
	Changes *state.ChangeSet
	Output  []byte
	// Proof is set when a proof path was requested.
	Proof *state.Proof
}

// CallPipeline runs runtime entry points in a sandbox.
type CallPipeline struct {
	sandbox sandbox.Sandbox
	log     logger.Logger
}

func NewCallPipeline(sb sandbox.Sandbox, log logger.Logger) *CallPipeline {
	return &CallPipeline{sandbox: sb, log: log}
}

// Call invokes method with the encoded args against the current state of
// ext. Storage reads are recorded and exported as JSON to proofPath unless
// it is empty; nothing is written when the call fails.
func (p *CallPipeline) Call(ctx context.Context, ext *state.Externalities, method string, args []byte, extensions sandbox.Extensions, proofPath string) (*CallResult, error) {
	if proofPath != "" {
		ext.StartProofRecording()
	}
	res, err := p.invoke(ctx, ext, sandbox.Request{Method: method, Args: args, Extensions: extensions})
	var proof *state.Proof
	var proofErr error
	if proofPath != "" {
		proof, proofErr = ext.TakeProof()
	}
	if err != nil {
		return nil, &CallError{Kind: TrapError, Method: method, Err: err}
	}
	if proofErr != nil {
		return nil, &CallError{Kind: ProofExportError, Method: method, Err: proofErr}
	}

	result := &CallResult{Method: method, Changes: res.Changes, Output: res.Output, Proof: proof}
	if result.Changes == nil {
		result.Changes = state.NewChangeSet()
	}
	if proof != nil {
		if err = p.exportProof(proof, proofPath); err != nil {
			return nil, &CallError{Kind: ProofExportError, Method: method, Err: err}
		}
	}
	return result, nil
}

// invoke calls the sandbox and converts panics into traps.
func (p *CallPipeline) invoke(ctx context.Context, ext *state.Externalities, req sandbox.Request) (res *sandbox.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.Join(sandbox.ErrTrap, NewPanicError(fmt.Sprint(r), debug.Stack()))
		}
	}()
	res, err = p.sandbox.Call(ctx, ext, req)
	if err == nil && res == nil {
		err = errors.New("sandbox returned no response")
	}
	return res, err
}

func (p *CallPipeline) exportProof(proof *state.Proof, path string) error {
	data, err := json.Marshal(proof)
	if err != nil {
		return errors.Wrap(err, "cannot encode proof")
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "cannot write proof to %s", path)
	}

	encoded := proof.Encode()
	compressed, err := zstdSize(encoded)
	if err != nil {
		return err
	}
	p.log.Infof("Proof exported to %s: %d nodes, size %d bytes, zstd compressed %d bytes", path, proof.Len(), len(encoded), compressed)
	return nil
}

func zstdSize(data []byte) (int, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return 0, errors.Wrap(err, "cannot create zstd encoder")
	}
	defer enc.Close()
	return len(enc.EncodeAll(data, nil)), nil
}

// DecodeOutput decodes the output of a call. Failures are reported as a
// CallError of kind DecodeError.
func DecodeOutput[T any](res *CallResult, decode func([]byte) (T, error)) (T, error) {
	v, err := decode(res.Output)
	if err != nil {
		var zero T
		return zero, &CallError{Kind: DecodeError, Method: res.Method, Err: err}
	}
	return v, nil
}
