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
	"context"
	"sort"
)

// V is a map of key-value pairs. It can be associated with a context with
// Bind().
type V map[string]interface{}

// Value is a name-value pair.
type Value struct {
	Name  string
	Value interface{}
}

// Values is a list of name-value pairs, sorted by name.
type Values []Value

// values is a chain of key-value pairs bound to a context.
type values struct {
	v      V
	parent *values
}

// Bind returns a new context with V attached.
func (v V) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, valuesKey, &values{v, getValues(ctx)})
}

func getValues(ctx context.Context) *values {
	out, _ := ctx.Value(valuesKey).(*values)
	return out
}

// flatten returns the bound values, with inner bindings shadowing outer ones.
func (v *values) flatten() Values {
	if v == nil {
		return nil
	}
	seen := map[string]bool{}
	out := Values{}
	for it := v; it != nil; it = it.parent {
		for name, value := range it.v {
			if !seen[name] {
				seen[name] = true
				out = append(out, Value{name, value})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
