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

package flags

import (
	"fmt"
	"reflect"
	"strings"
)

// Enum is a value of an enumerated integer type. A pointer to an Enum can be
// bound as a flag, and is then set from the names of the values of its type.
type Enum interface {
	// String returns the name of the value, or "" past the last value.
	String() string
	// Choose sets the Enum to v, one of the values of its type.
	Choose(v interface{})
}

// Choices are the values an Enum can take.
type Choices []fmt.Stringer

// String returns the quoted names of the choices, comma separated.
func (c Choices) String() string {
	names := make([]string, len(c))
	for i, v := range c {
		names[i] = fmt.Sprintf("%q", v.String())
	}
	return strings.Join(names, ", ")
}

// Chooser is the flag.Value of an Enum. Names match regardless of case.
type Chooser struct {
	Value   Enum
	Choices Choices
}

func (c Chooser) String() string {
	if c.Value == nil {
		return ""
	}
	return c.Value.String()
}

func (c Chooser) Set(name string) error {
	for _, v := range c.Choices {
		if strings.EqualFold(v.String(), name) {
			c.Value.Choose(v)
			return nil
		}
	}
	return fmt.Errorf("unknown value %q, valid options are: %s", name, c.Choices)
}

// maxChoices bounds the values ForEnum looks at.
const maxChoices = 256

// ForEnum returns the Chooser of v. The values of the type of v are taken to
// run from zero up to the first value whose name is empty.
func ForEnum(v Enum) Chooser {
	t := reflect.ValueOf(v).Elem().Type()
	c := Chooser{Value: v}
	for i := 0; i < maxChoices; i++ {
		e := reflect.New(t).Elem()
		switch e.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			e.SetInt(int64(i))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			e.SetUint(uint64(i))
		default:
			panic(fmt.Sprintf("%v is not an integer enum", t))
		}
		s := e.Interface().(fmt.Stringer)
		if s.String() == "" {
			break
		}
		c.Choices = append(c.Choices, s)
	}
	return c
}
