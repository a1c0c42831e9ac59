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

package log

import (
	"fmt"
	"strings"
)

// Style provides customization for printing messages.
type Style struct {
	Name      string        // Name of the style.
	Timestamp bool          // If true, the timestamp will be printed if part of the message.
	Tag       bool          // If true, the tag will be printed if part of the message.
	Trace     bool          // If true, the trace will be printed if part of the message.
	Severity  SeverityStyle // How the severity of the message will be printed.
	Values    ValueStyle    // How the values of the message will be printed.
}

// SeverityStyle is an enumerator of ways that severities can be printed.
type SeverityStyle int

const (
	// NoSeverity is the option to disable the printing of the severity.
	NoSeverity = SeverityStyle(iota)
	// SeverityShort is the option to display the severity as a single character.
	SeverityShort
	// SeverityLong is the option to display the severity in its full name.
	SeverityLong
)

// ValueStyle is an enumerator of ways that values can be printed.
type ValueStyle int

const (
	// NoValues is the option to disable the printing of values.
	NoValues = ValueStyle(iota)
	// ValuesSingleLine is the option to display all values on a single line.
	ValuesSingleLine
	// ValuesMultiLine is the option to display each value on a separate line.
	ValuesMultiLine
)

var (
	// Brief is a style that only prints the text.
	Brief = Style{Name: "brief"}

	// Normal is a style that prints the severity, trace and text with values on
	// a single line.
	Normal = Style{
		Name:     "normal",
		Tag:      true,
		Trace:    true,
		Severity: SeverityShort,
		Values:   ValuesSingleLine,
	}

	// Detailed is a style that prints everything it can, with each value on a
	// separate line.
	Detailed = Style{
		Name:      "detailed",
		Timestamp: true,
		Tag:       true,
		Trace:     true,
		Severity:  SeverityLong,
		Values:    ValuesMultiLine,
	}

	// Styles is the list of all registered styles.
	Styles = []Style{Brief, Normal, Detailed}
)

func (s Style) String() string { return s.Name }

// Choose sets the style to the registered style with the given name.
func (s *Style) Choose(name string) error {
	for _, style := range Styles {
		if style.Name == name {
			*s = style
			return nil
		}
	}
	return fmt.Errorf("unknown log style %q", name)
}

// Print returns the message msg printed with the style s.
func (s Style) Print(msg *Message) string {
	sb := strings.Builder{}
	if s.Timestamp && !msg.Time.IsZero() {
		sb.WriteString(msg.Time.Format("15:04:05.000"))
		sb.WriteString(" ")
	}
	switch s.Severity {
	case SeverityShort:
		sb.WriteString(msg.Severity.Short())
		sb.WriteString(" ")
	case SeverityLong:
		sb.WriteString(msg.Severity.String())
		sb.WriteString(" ")
	}
	if s.Tag && msg.Tag != "" {
		sb.WriteString("[")
		sb.WriteString(msg.Tag)
		sb.WriteString("] ")
	}
	if s.Trace && len(msg.Trace) > 0 {
		sb.WriteString(strings.Join(msg.Trace, " -> "))
		sb.WriteString(": ")
	}
	sb.WriteString(msg.Text)
	if len(msg.Values) > 0 {
		switch s.Values {
		case ValuesSingleLine:
			t := make([]string, len(msg.Values))
			for i, v := range msg.Values {
				t[i] = fmt.Sprintf("%v: %v", v.Name, v.Value)
			}
			fmt.Fprintf(&sb, " (%v)", strings.Join(t, ", "))
		case ValuesMultiLine:
			for _, v := range msg.Values {
				fmt.Fprintf(&sb, "\n  %v: %v", v.Name, v.Value)
			}
		}
	}
	return sb.String()
}
