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
	"sync"
	"time"

	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/executor"
	"github.com/0xsoniclabs/tryruntime/executor/extension"
	"github.com/0xsoniclabs/tryruntime/logger"
)

const (
	progressReportFormat     = "Elapsed time: %d:%02d:%02d; reached block %d; executed %d blocks; last interval rate ~%.2f blocks/s"
	finalSummaryReportFormat = "Total elapsed time: %d:%02d:%02d; last block %d; executed %d blocks; overall rate ~%.2f blocks/s"
)

// MakeProgressLogger creates an extension periodically reporting the
// progress of the follow-chain engine. It is disabled by a zero interval.
func MakeProgressLogger(cfg *config.Config) executor.Extension {
	if cfg.ProgressInterval <= 0 {
		return extension.NilExtension{}
	}
	return makeProgressLogger(cfg.ProgressInterval, logger.NewLogger(cfg.LogLevel, "Progress-Logger"))
}

func makeProgressLogger(interval time.Duration, log logger.Logger) *progressLogger {
	return &progressLogger{
		interval: interval,
		log:      log,
		inputCh:  make(chan progress, 16),
		wg:       new(sync.WaitGroup),
	}
}

type progress struct {
	block    uint64
	executed uint64
}

type progressLogger struct {
	extension.NilExtension
	interval time.Duration
	log      logger.Logger
	inputCh  chan progress
	wg       *sync.WaitGroup
}

// PreRun starts the reporting goroutine.
func (l *progressLogger) PreRun(executor.State, *executor.Context) error {
	l.wg.Add(1)
	go l.startLogging()
	return nil
}

// PostBlock forwards the executed block to the reporting goroutine.
func (l *progressLogger) PostBlock(state executor.State, ctx *executor.Context) error {
	l.inputCh <- progress{block: state.Block, executed: ctx.Executed}
	return nil
}

// PostRun stops the reporting goroutine after it printed the summary.
func (l *progressLogger) PostRun(executor.State, *executor.Context, error) error {
	close(l.inputCh)
	l.wg.Wait()
	return nil
}

func (l *progressLogger) startLogging() {
	defer l.wg.Done()
	start := time.Now()
	lastReport := start
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var current, lastReported progress
	for {
		select {
		case now := <-ticker.C:
			rate := float64(current.executed-lastReported.executed) / now.Sub(lastReport).Seconds()
			hours, minutes, seconds := logger.ParseTime(now.Sub(start))
			l.log.Infof(progressReportFormat, hours, minutes, seconds, current.block, current.executed, rate)
			lastReport = now
			lastReported = current
		case p, ok := <-l.inputCh:
			if !ok {
				elapsed := time.Since(start)
				hours, minutes, seconds := logger.ParseTime(elapsed)
				l.log.Noticef(finalSummaryReportFormat, hours, minutes, seconds, current.block, current.executed, float64(current.executed)/elapsed.Seconds())
				return
			}
			current = p
		}
	}
}
