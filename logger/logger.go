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

//go:generate mockgen -source logger.go -destination logger_mock.go -package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/op/go-logging"
	"github.com/urfave/cli/v2"
)

const defaultLogFormat = "%{color}%{time:2006-01-02 15:04:05.000} [%{module}] %{level:.4s}%{color:reset}: %{message}"

var LogLevelFlag = cli.StringFlag{
	Name:    "log",
	Aliases: []string{"l"},
	Usage:   "level of the logging of the app action (\"critical\", \"error\", \"warning\", \"notice\", \"info\", \"debug\"; default: INFO)",
	Value:   "info",
}

// Logger is the subset of the go-logging logger used across the tool.
type Logger interface {
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Critical(args ...any)
	Criticalf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Warning(args ...any)
	Warningf(format string, args ...any)
	Notice(args ...any)
	Noticef(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Debug(args ...any)
	Debugf(format string, args ...any)
	IsEnabledFor(level logging.Level) bool
}

var backendOnce sync.Once

// NewLogger returns a logger for the given module. An unknown level
// falls back to INFO.
func NewLogger(level string, module string) Logger {
	backendOnce.Do(func() {
		backend := logging.NewLogBackend(os.Stderr, "", 0)
		logging.SetBackend(logging.NewBackendFormatter(backend, logging.MustStringFormatter(defaultLogFormat)))
	})

	log := logging.MustGetLogger(module)
	lvl, err := logging.LogLevel(strings.ToUpper(level))
	if err != nil {
		lvl = logging.INFO
	}
	logging.SetLevel(lvl, module)
	return log
}

// ParseTime splits elapsed time into hours, minutes and seconds.
func ParseTime(elapsed time.Duration) (uint32, uint32, uint32) {
	var (
		hours, minutes, seconds uint32
	)
	seconds = uint32(elapsed.Round(time.Second).Seconds())
	if seconds >= 60 {
		minutes = seconds / 60
		seconds %= 60
	}
	if minutes >= 60 {
		hours = minutes / 60
		minutes %= 60
	}
	return hours, minutes, seconds
}
