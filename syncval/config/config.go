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

// Package config contains the build configuration flags and the runtime
// configuration of the validation engine.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

const (
	DebugSync       = false // Logs every access, barrier and import as it is applied
	DebugTrim       = false // Logs the records removed by every trim
	CheckInvariants = false // Verifies every timeline after each mutation
)

// Config is the runtime configuration of a validation context.
type Config struct {
	// Trim removes records that host observed completion has made
	// irrelevant. Trimming never changes the reports, only memory use.
	Trim bool `json:"trim"`
	// DropDrained releases timelines left empty by trimming.
	DropDrained bool `json:"drop_drained"`
	// MaxReports caps the reports kept for a single submission. Zero means
	// no limit. Reports past the cap are counted but not returned.
	MaxReports int `json:"max_reports"`
	// Metrics enables the Prometheus collectors of the context.
	Metrics bool `json:"metrics"`
	// Tracing enables OpenTelemetry spans around submissions.
	Tracing bool `json:"tracing"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Trim:        true,
		DropDrained: true,
		Metrics:     true,
		Tracing:     true,
	}
}

// Load reads a configuration from the JSON file at path. Fields missing from
// the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	if cfg.MaxReports < 0 {
		return cfg, errors.Errorf("max_reports must not be negative, got %d", cfg.MaxReports)
	}
	return cfg, nil
}
