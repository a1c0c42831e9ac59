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
	"flag"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// repeatedFlag is the flag.Value of a slice. Every occurrence of the flag
// appends one element, parsed the way a flag of the element type is.
type repeatedFlag struct {
	slice reflect.Value
	// elem points to the element being parsed.
	elem  reflect.Value
	parse flag.Value
}

func newRepeatedFlag(slice reflect.Value) *repeatedFlag {
	elem := reflect.New(slice.Type().Elem())
	return &repeatedFlag{slice: slice, elem: elem, parse: elementValue(elem.Interface())}
}

// elementValue returns the flag.Value that parses into ptr.
func elementValue(ptr interface{}) flag.Value {
	switch v := ptr.(type) {
	case Enum:
		return ForEnum(v)
	case flag.Value:
		return v
	}
	const name = "element"
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	switch v := ptr.(type) {
	case *string:
		fs.StringVar(v, name, "", "")
	case *int:
		fs.IntVar(v, name, 0, "")
	case *int64:
		fs.Int64Var(v, name, 0, "")
	case *uint:
		fs.UintVar(v, name, 0, "")
	case *uint64:
		fs.Uint64Var(v, name, 0, "")
	case *float64:
		fs.Float64Var(v, name, 0, "")
	case *time.Duration:
		fs.DurationVar(v, name, 0, "")
	default:
		panic(fmt.Sprintf("Unhandled repeated flag type: %T", ptr))
	}
	return fs.Lookup(name).Value
}

// String returns the elements, comma separated.
func (f *repeatedFlag) String() string {
	if !f.slice.IsValid() {
		return ""
	}
	parts := make([]string, f.slice.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(f.slice.Index(i).Interface())
	}
	return strings.Join(parts, ", ")
}

func (f *repeatedFlag) Set(value string) error {
	if err := f.parse.Set(value); err != nil {
		return err
	}
	f.slice.Set(reflect.Append(f.slice, f.elem.Elem()))
	return nil
}
