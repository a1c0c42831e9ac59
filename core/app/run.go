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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/syncval/core/log"
)

var (
	// Name is the full name of the application
	Name string
	// ExitFuncForTesting can be set to change the behaviour when there is a command line parsing failure.
	// It defaults to os.Exit
	ExitFuncForTesting = os.Exit
	// ShortHelp should be set to add a help message to the usage text.
	ShortHelp = ""
	// ShortUsage is usage text for the additional non-flag arguments.
	ShortUsage = ""
	// UsageFooter is printed at the bottom of the usage text
	UsageFooter = ""
	// Version holds the version specification for the application.
	// A command line option to report it is added if it is valid.
	Version = VersionSpec{Major: -1}
)

// ExitCode is the type for named return values from the application main entry point.
type ExitCode int

const (
	// SuccessExit is the exit code for succesful exit.
	SuccessExit ExitCode = iota
	// FatalExit is the exit code if something logs at a fatal severity or the
	// main task fails.
	FatalExit
	// UsageExit is the exit code if the usage function was invoked
	UsageExit
)

// AppFlags are the flags of every application.
type AppFlags struct {
	Log     LogFlags
	Profile ProfileFlags
	Version bool `help:"Print the version and exit"`
}

// VersionSpec is the structure for the version of an application.
type VersionSpec struct {
	// Major version, the version structure is in valid if <0
	Major int
	// Minor version, not used if <0
	Minor int
	// Point version, not used if <0
	Point int
	// The build identifier, not used if an empty string
	Build string
}

// IsValid reports true if the VersionSpec is valid, ie it has a Major version.
func (v VersionSpec) IsValid() bool {
	return v.Major >= 0
}

// Format implements fmt.Formatter to print the version.
func (v VersionSpec) Format(f fmt.State, c rune) {
	fmt.Fprint(f, v.Major)
	if v.Minor >= 0 {
		fmt.Fprint(f, ".", v.Minor)
	}
	if v.Point >= 0 {
		fmt.Fprint(f, ".", v.Point)
	}
	if v.Build != "" {
		fmt.Fprint(f, ":", v.Build)
	}
}

func init() {
	Name = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
}

// Run performs all the work needed to start up an application.
// It parses the main command line arguments, builds a primary context that is
// cancelled on interrupt, runs main, then runs the cleanups.
func Run(main func(ctx context.Context) error) {
	defer func() {
		switch cause := recover().(type) {
		case nil:
		case ExitCode:
			ExitFuncForTesting(int(cause))
		default:
			panic(cause)
		}
	}()
	flags := &AppFlags{Log: logDefaults()}
	verbMainPrepare(flags)
	fullHelp := false
	if err := globalVerbs.Flags.Parse(&fullHelp, os.Args[1:]...); err != nil {
		Usage(context.Background(), "%v", err)
	}

	if flags.Version {
		fmt.Fprint(os.Stdout, Name, " version ", Version, "\n")
		return
	}

	rootCtx, cleanup := prepareContext(&flags.Log)
	if fullHelp {
		usage(rootCtx, "", true)
		panic(SuccessExit)
	}
	cleanup = applyProfiler(rootCtx, &flags.Profile).Then(cleanup)
	defer func() { cleanup.Invoke(rootCtx) }()

	ctx, cancel := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := main(ctx); err != nil {
		log.E(ctx, "Main failed\nError: %v", err)
		cleanup = cleanup.Invoke(rootCtx)
		panic(FatalExit)
	}
}
