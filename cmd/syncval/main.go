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

// The syncval command replays GPU workload scripts through the
// synchronization validator, and explains saved reports.
package main

import (
	"net/http"

	"github.com/google/syncval/core/app"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	app.ShortHelp = "syncval validates the synchronization of GPU workload scripts."
	app.Version = app.VersionSpec{Major: 0, Minor: 1, Point: -1}
	http.Handle("/metrics", promhttp.Handler())
	app.Run(app.VerbMain)
}
