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
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/google/syncval/core/log"
	"github.com/pkg/errors"
)

// ProfileFlags controls the profiling of the application.
type ProfileFlags struct {
	CPU   string `help:"_Write a CPU profile to this file"`
	Mem   string `help:"_Write a memory profile to this file on exit"`
	Serve string `help:"_Serve pprof and every handler registered with http.DefaultServeMux on this address"`
}

func applyProfiler(ctx context.Context, flags *ProfileFlags) Cleanup {
	var cleanup Cleanup
	if flags.CPU != "" {
		f, err := os.Create(flags.CPU)
		if err != nil {
			log.F(ctx, "CPU profiling failed to start.\nError: %v", err)
		}
		log.I(ctx, "CPU profiling enabled")
		pprof.StartCPUProfile(f)
		cleanup = cleanup.Then(func(ctx context.Context) error {
			pprof.StopCPUProfile()
			log.I(ctx, "CPU profile written")
			return nil
		}).Then(closer(f, "CPU profile"))
	}
	if flags.Mem != "" {
		f, err := os.Create(flags.Mem)
		if err != nil {
			log.F(ctx, "Mem profiling failed to start.\nError: %v", err)
		}
		cleanup = cleanup.Then(func(ctx context.Context) error {
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				return errors.Wrap(err, "writing memory profile")
			}
			log.I(ctx, "Mem profile written")
			return nil
		}).Then(closer(f, "memory profile"))
	}
	if flags.Serve != "" {
		server := &http.Server{Addr: flags.Serve}
		log.I(ctx, "Serving on %v", flags.Serve)
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.E(ctx, "Serving on %v failed: %v", flags.Serve, err)
			}
		}()
		cleanup = cleanup.Then(func(ctx context.Context) error {
			return errors.Wrapf(server.Shutdown(ctx), "stopping the server on %v", flags.Serve)
		})
	}
	return cleanup
}
