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

package logger

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/executor"
	"github.com/0xsoniclabs/tryruntime/executor/extension"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type deltaLogger struct {
	extension.NilExtension
	cfg    *config.Config
	log    logger.Logger
	file   *os.File
	writer *bufio.Writer
}

// MakeDeltaLogger creates an extension writing the storage changes of every
// executed block to a text file.
func MakeDeltaLogger(cfg *config.Config) executor.Extension {
	if cfg.DeltaLogging == "" {
		return extension.NilExtension{}
	}

	return makeDeltaLogger(cfg, logger.NewLogger(cfg.LogLevel, "Delta-Logger"))
}

func makeDeltaLogger(cfg *config.Config, log logger.Logger) *deltaLogger {
	return &deltaLogger{cfg: cfg, log: log}
}

// PreRun creates the trace file.
func (l *deltaLogger) PreRun(executor.State, *executor.Context) error {
	file, err := os.Create(l.cfg.DeltaLogging)
	if err != nil {
		return fmt.Errorf("cannot create delta-log file; %w", err)
	}
	l.file = file
	l.writer = bufio.NewWriter(file)
	return nil
}

// PostBlock appends the applied diff of the block.
func (l *deltaLogger) PostBlock(st executor.State, ctx *executor.Context) error {
	if l.writer == nil || ctx.Diff == nil {
		return nil
	}
	tx := ctx.Diff.Transaction
	l.write(fmt.Sprintf("Block, %d, %v, %v", st.Block, st.Hash, ctx.Diff.TransactionRoot))
	for _, m := range tx.Top {
		l.write(mutation("", m))
	}
	for _, child := range tx.Children {
		for _, m := range child.Mutations {
			l.write(mutation(hexutil.Encode(child.StorageKey)+", ", m))
		}
	}
	l.write("EndBlock")
	return nil
}

func (l *deltaLogger) write(line string) {
	l.log.Debug(line)
	// errors are sticky and reported by Flush
	_, _ = l.writer.WriteString(line + "\n")
}

func mutation(prefix string, m state.KeyMutation) string {
	if m.Deleted {
		return fmt.Sprintf("Delete, %s%s", prefix, hexutil.Encode(m.Key))
	}
	return fmt.Sprintf("Set, %s%s, %s", prefix, hexutil.Encode(m.Key), hexutil.Encode(m.Value))
}

// PostRun flushes and closes the trace.
func (l *deltaLogger) PostRun(executor.State, *executor.Context, error) error {
	if l.file == nil {
		return nil
	}
	err := errors.Join(l.writer.Flush(), l.file.Sync(), l.file.Close())
	l.file, l.writer = nil, nil
	return err
}
