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
	"fmt"
	"io"
	"os"

	"github.com/google/syncval/core/app"
	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval"
	"github.com/google/syncval/syncval/config"
	"github.com/google/syncval/syncval/hazard"
	"github.com/google/syncval/syncval/report"
	"github.com/google/syncval/syncval/script"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type checkVerb struct {
	Format     report.Format `help:"The format the reports are written in"`
	Config     string        `help:"A JSON configuration file used instead of the configuration of the scripts"`
	MaxReports int           `name:"max-reports" help:"Caps the reports kept per submission, overriding the configuration if not zero"`
	Jobs       int           `help:"The number of scripts replayed at once"`
	Out        string        `help:"Write the reports to this file instead of stdout"`
	Ignore     []kindFlag    `help:"Leave reports of this kind out of the output. Repeatable"`

	// reg is where the metrics of every script are registered, the default
	// registerer if nil.
	reg prometheus.Registerer
}

// kindFlag is a report kind named on the command line.
type kindFlag struct{ hazard.Kind }

func (k *kindFlag) Set(name string) (err error) {
	k.Kind, err = hazard.ParseKind(name)
	return err
}

func init() {
	verb := &checkVerb{Jobs: 4}
	app.AddVerb(&app.Verb{
		Name:       "check",
		ShortHelp:  "Replays scripts and reports their synchronization hazards",
		ShortUsage: "<script.json> ...",
		Auto:       verb,
	})
}

// result is the outcome of a script.
type result struct {
	path    string
	reports []hazard.Report
	err     error
}

func (verb *checkVerb) Run(ctx context.Context, flags flag.FlagSet) error {
	if flags.NArg() == 0 {
		app.Usage(ctx, "At least one script expected")
		return nil
	}
	if verb.Format != report.Text && flags.NArg() != 1 {
		app.Usage(ctx, "Reports of %d scripts cannot be written as %v", flags.NArg(), verb.Format)
		return nil
	}
	if verb.Jobs < 1 {
		verb.Jobs = 1
	}
	var override *config.Config
	if verb.Config != "" {
		cfg, err := config.Load(verb.Config)
		if err != nil {
			return err
		}
		override = &cfg
	}

	paths := dedupe(flags.Args())
	results := make([]result, len(paths))
	sem := semaphore.NewWeighted(int64(verb.Jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = verb.check(log.Enter(gctx, path), path, override)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if verb.Out != "" {
		f, err := os.Create(verb.Out)
		if err != nil {
			return log.Errf(ctx, err, "Creating %v", verb.Out)
		}
		defer f.Close()
		out = f
	}
	failed := 0
	for _, r := range results {
		if verb.Format == report.Text && len(results) > 1 {
			fmt.Fprintf(out, "%s:\n", r.path)
		}
		if err := report.Write(out, verb.Format, verb.shown(r.reports)); err != nil {
			return err
		}
		if r.err != nil {
			log.E(ctx, "%v: %v", r.path, r.err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(results))
	}
	return nil
}

// check replays the script at path on a context of its own.
func (verb *checkVerb) check(ctx context.Context, path string, override *config.Config) result {
	out := result{path: path}
	s, err := script.LoadFile(path)
	if err != nil {
		out.err = err
		return out
	}
	cfg := config.Default()
	switch {
	case override != nil:
		cfg = *override
	case s.Config != nil:
		cfg = *s.Config
	}
	if verb.MaxReports != 0 {
		cfg.MaxReports = verb.MaxReports
	}
	reg := verb.reg
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := syncval.New(ctx, syncval.Options{
		Config:     cfg,
		Registerer: prometheus.WrapRegistererWith(prometheus.Labels{"script": path}, reg),
	})
	out.reports, out.err = script.Run(ctx, c, s)
	if out.err == nil && s.Expect != nil {
		out.err = errors.Wrap(script.Check(out.reports, s.Expect), "unexpected reports")
	}
	log.I(ctx, "%v in session %v", report.Summarize(out.reports), c.Session())
	return out
}

// shown returns the reports whose kind is not ignored.
func (verb *checkVerb) shown(reports []hazard.Report) []hazard.Report {
	if len(verb.Ignore) == 0 {
		return reports
	}
	ignored := map[hazard.Kind]bool{}
	for _, k := range verb.Ignore {
		ignored[k.Kind] = true
	}
	out := []hazard.Report{}
	for _, r := range reports {
		if !ignored[r.Kind] {
			out = append(out, r)
		}
	}
	return out
}

func dedupe(paths []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
