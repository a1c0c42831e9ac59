// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/syncval/core/log"
)

// LogLevel is a log.Severity usable as a flag value.
type LogLevel struct{ log.Severity }

// Set chooses the severity named s.
func (l *LogLevel) Set(s string) error { return l.Choose(s) }

// LogStyle is a log.Style usable as a flag value.
type LogStyle struct{ log.Style }

// Set chooses the style named s.
func (l *LogStyle) Set(s string) error { return l.Choose(s) }

// LogFlags controls where and how the application logs.
type LogFlags struct {
	Level LogLevel `help:"The minimum severity logged: Verbose, Debug, Info, Warning, Error or Fatal"`
	Style LogStyle `help:"The log style: brief, normal or detailed"`
	File  string   `help:"Log to this file instead of stderr"`
}

func logDefaults() LogFlags {
	return LogFlags{
		Level: LogLevel{log.Info},
		Style: LogStyle{log.Normal},
	}
}

// wrapHandler stops the application once a fatal message has been handled.
func wrapHandler(to log.Handler) log.Handler {
	return log.NewHandler(func(m *log.Message) {
		to.Handle(m)
		if m.Severity >= log.Fatal {
			panic(FatalExit)
		}
	}, to.Close)
}

// prepareContext returns the root context, logging to stderr or to the log
// file, and the cleanup closing the log file.
func prepareContext(flags *LogFlags) (context.Context, Cleanup) {
	ctx := context.Background()
	ctx = log.PutFilter(ctx, log.SeverityFilter(flags.Level.Severity))
	ctx = log.PutHandler(ctx, wrapHandler(log.Stderr(flags.Style.Style)))
	if flags.File == "" {
		return ctx, nil
	}
	f, err := createLogFile(flags.File)
	if err != nil {
		log.E(ctx, "Failed to create log file %v: %v", flags.File, err)
		return ctx, nil
	}
	ctx = log.PutHandler(ctx, wrapHandler(log.Writer(flags.Style.Style, f)))
	log.D(ctx, "Logging to %v", f.Name())
	return ctx, closer(f, "log file "+f.Name())
}

func createLogFile(path string) (*os.File, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}
