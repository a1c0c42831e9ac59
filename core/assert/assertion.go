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

package assert

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"text/tabwriter"
	"unicode"
)

// Assertion is a single assertion line under construction. Entries are
// buffered as tab separated columns, and only written to the output when the
// assertion fails or is committed.
type Assertion struct {
	severity severity
	out      *bytes.Buffer
	to       Output
}

// severity is how a committed assertion is reported.
type severity int

const (
	info severity = iota
	failure
	fatal
)

var severityNames = [...]string{info: "Info", failure: "Error", fatal: "Critical"}

func (s severity) String() string {
	if s < info || s > fatal {
		return "Unknown"
	}
	return severityNames[s]
}

// report hands message to the method of o matching s.
func (s severity) report(o Output, message string) {
	switch s {
	case failure:
		o.Error(message)
	case fatal:
		o.Fatal(message)
	default:
		o.Log(message)
	}
}

// Critical makes a failure of the assertion stop the test.
func (a *Assertion) Critical() *Assertion {
	a.severity = fatal
	return a
}

// Error appends args to the buffered entries and commits them as a failure.
func (a *Assertion) Error(args ...interface{}) {
	fmt.Fprint(a.out, args...)
	a.severity = failure
	a.Commit()
}

// quoted writes v to the buffer, in backquotes if it is text.
func (a Assertion) quoted(v interface{}) {
	switch v := v.(type) {
	case error:
		fmt.Fprintf(a.out, "`%v`", v)
	case string:
		fmt.Fprintf(a.out, "`%s`", v)
	default:
		fmt.Fprint(a.out, v)
	}
}

// Print writes the values to the buffer as tab separated columns.
func (a *Assertion) Print(args ...interface{}) *Assertion {
	for i, v := range args {
		if i > 0 {
			a.out.WriteByte('\t')
		}
		a.quoted(v)
	}
	return a
}

// Println prints the values and starts a new indented line.
func (a *Assertion) Println(args ...interface{}) *Assertion {
	a.Print(args...)
	a.out.WriteString("\n    ")
	return a
}

// Printf writes a formatted unquoted string to the buffer.
func (a *Assertion) Printf(format string, args ...interface{}) *Assertion {
	fmt.Fprintf(a.out, format, args...)
	return a
}

// Add appends a line of the key followed by its values.
func (a *Assertion) Add(key string, values ...interface{}) *Assertion {
	a.out.WriteString(key + "\t\t")
	return a.Println(values...)
}

// Got adds the line of the value under test.
func (a *Assertion) Got(values ...interface{}) *Assertion {
	return a.Add("Got", values...)
}

// Expect adds the line of the expectation, op relating it to the Got line.
func (a *Assertion) Expect(op string, values ...interface{}) *Assertion {
	a.out.WriteString("Expect\t" + op + "\t")
	return a.Println(values...)
}

// Compare adds both the Got and the Expect lines.
func (a *Assertion) Compare(value interface{}, op string, expect ...interface{}) *Assertion {
	return a.Got(value).Expect(op, expect...)
}

// Test commits the buffered lines as a failure unless condition holds.
func (a *Assertion) Test(condition bool) bool {
	if !condition {
		if a.severity < failure {
			a.severity = failure
		}
		a.Commit()
	}
	return condition
}

// TestDeepEqual compares value and expect with reflect.DeepEqual.
func (a *Assertion) TestDeepEqual(value, expect interface{}) bool {
	return a.Compare(value, "deep ==", expect).Test(reflect.DeepEqual(value, expect))
}

// render aligns the columns of the buffered lines.
func (a Assertion) render() string {
	buf := &bytes.Buffer{}
	tabs := tabwriter.NewWriter(buf, 1, 4, 1, ' ', tabwriter.StripEscape)
	tabs.Write(a.out.Bytes())
	tabs.Flush()
	return a.severity.String() + ":" + strings.TrimRightFunc(buf.String(), unicode.IsSpace)
}

// Commit writes the buffered lines to the output.
func (a Assertion) Commit() {
	a.severity.report(a.to, a.render())
}
