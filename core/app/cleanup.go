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
	"io"

	"github.com/google/syncval/core/fault"
	"github.com/google/syncval/core/log"
	"github.com/pkg/errors"
)

// Cleanup is a step of the shutdown of the application.
type Cleanup func(ctx context.Context) error

// Then returns a Cleanup that runs c then next. Either may be nil. next runs
// even if c fails, and the errors of both are returned.
func (c Cleanup) Then(next Cleanup) Cleanup {
	if c == nil {
		return next
	}
	if next == nil {
		return c
	}
	return func(ctx context.Context) error {
		var errs fault.List
		errs.Collect(c(ctx))
		errs.Collect(next(ctx))
		return errs.Err()
	}
}

// Invoke runs c if not nil and logs its failure. It returns nil so that a
// variable holding c can be cleared as it runs.
func (c Cleanup) Invoke(ctx context.Context) Cleanup {
	if c != nil {
		if err := c(ctx); err != nil {
			log.E(ctx, "Cleanup failed: %v", err)
		}
	}
	return nil
}

// closer returns the Cleanup closing f, the file what.
func closer(f io.Closer, what string) Cleanup {
	return func(context.Context) error {
		return errors.Wrapf(f.Close(), "closing %s", what)
	}
}
