// Copyright (C) 2026 Google Inc.
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

package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/syncval/core/app"
	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval/report"
)

type explainVerb struct {
	Format report.Format `help:"The format the reports were written in"`
}

func init() {
	verb := &explainVerb{Format: report.JSON}
	app.AddVerb(&app.Verb{
		Name:       "explain",
		ShortHelp:  "Prints the reports saved by check as text",
		ShortUsage: "<reports>",
		Auto:       verb,
	})
}

func (verb *explainVerb) Run(ctx context.Context, flags flag.FlagSet) error {
	if flags.NArg() != 1 {
		app.Usage(ctx, "Exactly one reports file expected, got %d", flags.NArg())
		return nil
	}
	f, err := os.Open(flags.Arg(0))
	if err != nil {
		return log.Errf(ctx, err, "Opening %v", flags.Arg(0))
	}
	defer f.Close()
	list, err := report.Read(f, verb.Format)
	if err != nil {
		return err
	}
	return report.Explain(os.Stdout, list)
}
