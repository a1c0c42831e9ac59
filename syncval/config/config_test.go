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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/syncval/core/assert"
	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval/config"
)

func TestLoad(t *testing.T) {
	ctx := log.Testing(t)
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	cfg, err := config.Load(write("partial.json", `{"trim": false, "max_reports": 10}`))
	assert.For(ctx, "err").ThatError(err).Succeeded()
	expected := config.Default()
	expected.Trim = false
	expected.MaxReports = 10
	assert.For(ctx, "cfg").That(cfg).Equals(expected)

	_, err = config.Load(write("bad.json", `{"trim": `))
	assert.For(ctx, "malformed").ThatError(err).HasMessage("parsing config " + filepath.Join(dir, "bad.json") + ": unexpected end of JSON input")

	_, err = config.Load(write("negative.json", `{"max_reports": -1}`))
	assert.For(ctx, "negative").ThatError(err).Failed()

	_, err = config.Load(filepath.Join(dir, "missing.json"))
	assert.For(ctx, "missing").ThatError(err).Failed()
}
