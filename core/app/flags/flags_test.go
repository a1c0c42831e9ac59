// Copyright (C) 2018 Google Inc.
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

package flags_test

import (
	"io"
	"testing"
	"time"

	"github.com/google/syncval/core/app/flags"
	"github.com/google/syncval/core/assert"
	"github.com/google/syncval/core/log"
)

type color int

const (
	red color = iota
	green
	blue
)

func (c color) String() string {
	switch c {
	case red:
		return "red"
	case green:
		return "green"
	case blue:
		return "blue"
	default:
		return ""
	}
}

func (c *color) Choose(v interface{}) { *c = v.(color) }

type label string

func (l *label) String() string     { return string(*l) }
func (l *label) Set(v string) error { *l = label(v); return nil }

type nested struct {
	Depth int `help:"how deep"`
}

type testFlags struct {
	Name    string        `help:"a name"`
	Color   color         `help:"a color"`
	Timeout time.Duration `help:"_hidden until full help"`
	Labels  []label       `name:"label"`
	Counts  []uint
	Colors  []color `name:"colors"`
	Inner   nested
	Top     nested `fullname:"top"`
}

func newSet(v *testFlags) *flags.Set {
	s := &flags.Set{}
	s.Raw.SetOutput(io.Discard)
	s.Bind("", v, "")
	return s
}

func TestBind(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name   string
		args   []string
		expect testFlags
		rest   []string
	}{
		{"defaults", nil, testFlags{Color: green}, []string{}},
		{"scalars",
			[]string{"-name", "x", "-color", "Blue", "-timeout", "2s", "file"},
			testFlags{Name: "x", Color: blue, Timeout: 2 * time.Second},
			[]string{"file"}},
		{"repeated",
			[]string{"-label", "a", "-label", "b", "-counts", "3", "-counts", "4", "-colors", "red", "-colors", "BLUE"},
			testFlags{Color: green, Labels: []label{"a", "b"}, Counts: []uint{3, 4}, Colors: []color{red, blue}},
			[]string{}},
		{"nested",
			[]string{"-inner-depth", "2", "-top-depth", "5"},
			testFlags{Color: green, Inner: nested{2}, Top: nested{5}},
			[]string{}},
	} {
		ctx := log.Enter(ctx, test.name)
		v := &testFlags{Color: green}
		s := newSet(v)
		assert.For(ctx, "parse").ThatError(s.Parse(nil, test.args...)).Succeeded()
		assert.For(ctx, "value").That(*v).DeepEquals(test.expect)
		assert.For(ctx, "args").ThatSlice(s.Args()).Equals(test.rest)
	}
}

func TestParseErrors(t *testing.T) {
	ctx := log.Testing(t)
	v := &testFlags{}
	assert.For(ctx, "bad choice").ThatError(newSet(v).Parse(nil, "-color", "mauve")).Failed()
	assert.For(ctx, "unknown flag").ThatError(newSet(v).Parse(nil, "-colour", "red")).Failed()
	assert.For(ctx, "bad element").ThatError(newSet(v).Parse(nil, "-counts", "-1")).Failed()
	assert.For(ctx, "bad repeated choice").ThatError(newSet(v).Parse(nil, "-colors", "mauve")).Failed()
}

func TestRepeated(t *testing.T) {
	ctx := log.Testing(t)
	v := &testFlags{}
	s := newSet(v)
	assert.For(ctx, "empty").ThatString(s.Raw.Lookup("counts").Value.String()).Equals("")
	assert.For(ctx, "parse").ThatError(s.Parse(nil, "-counts", "3", "-counts", "4", "-colors", "green")).Succeeded()
	assert.For(ctx, "counts").ThatString(s.Raw.Lookup("counts").Value.String()).Equals("3, 4")
	assert.For(ctx, "colors").ThatString(s.Raw.Lookup("colors").Value.String()).Equals("green")
}

func TestForEnum(t *testing.T) {
	ctx := log.Testing(t)
	c := blue
	chooser := flags.ForEnum(&c)
	assert.For(ctx, "choices").ThatString(chooser.Choices.String()).Equals(`"red", "green", "blue"`)
	assert.For(ctx, "current").ThatString(chooser.String()).Equals("blue")
	assert.For(ctx, "set").ThatError(chooser.Set("Red")).Succeeded()
	assert.For(ctx, "chosen").That(c).Equals(red)
	err := chooser.Set("teal")
	assert.For(ctx, "unknown").ThatError(err).Failed()
	assert.For(ctx, "message").ThatString(err.Error()).Contains(`valid options are: "red", "green", "blue"`)
}

func TestUsage(t *testing.T) {
	ctx := log.Testing(t)
	s := newSet(&testFlags{})
	full := false
	assert.For(ctx, "parse").ThatError(s.Parse(&full, "-fullhelp")).Succeeded()
	assert.For(ctx, "full").ThatBoolean(full).IsTrue()

	brief := s.Usage(false)
	assert.For(ctx, "choices").ThatString(brief).Contains(`[one of: "red", "green", "blue"]`)
	assert.For(ctx, "hidden").ThatString(brief).DoesNotContain("hidden until full help")
	assert.For(ctx, "fullhelp").ThatString(brief).DoesNotContain("fullhelp")
	assert.For(ctx, "verbose").ThatString(s.Usage(true)).Contains("hidden until full help")
	assert.For(ctx, "visible").ThatBoolean(s.HasVisibleFlags(false)).IsTrue()
}
