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

package interval

import (
	"testing"

	"github.com/google/syncval/core/assert"
	"github.com/google/syncval/core/log"
)

func TestSpanListMerge(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name     string
		list     U64SpanList
		with     U64Span
		expected U64SpanList
	}{
		{"empty", U64SpanList{}, U64Span{0, 10}, U64SpanList{{0, 10}}},
		{"before", U64SpanList{{20, 30}}, U64Span{0, 10}, U64SpanList{{0, 10}, {20, 30}}},
		{"after", U64SpanList{{0, 10}}, U64Span{20, 30}, U64SpanList{{0, 10}, {20, 30}}},
		{"touching", U64SpanList{{0, 10}}, U64Span{10, 20}, U64SpanList{{0, 20}}},
		{"bridge", U64SpanList{{0, 10}, {20, 30}}, U64Span{5, 25}, U64SpanList{{0, 30}}},
		{"inside", U64SpanList{{0, 30}}, U64Span{5, 25}, U64SpanList{{0, 30}}},
		{"swallow", U64SpanList{{5, 6}, {8, 9}}, U64Span{0, 30}, U64SpanList{{0, 30}}},
	} {
		ctx := log.Enter(ctx, test.name)
		test.list.Merge(test.with)
		assert.For(ctx, "list").ThatSlice(test.list).Equals(test.expected)
	}
}

func TestSpanListRemove(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name     string
		list     U64SpanList
		with     U64Span
		expected U64SpanList
	}{
		{"miss", U64SpanList{{0, 10}}, U64Span{20, 30}, U64SpanList{{0, 10}}},
		{"middle", U64SpanList{{0, 30}}, U64Span{10, 20}, U64SpanList{{0, 10}, {20, 30}}},
		{"across", U64SpanList{{0, 10}, {20, 30}}, U64Span{5, 25}, U64SpanList{{0, 5}, {25, 30}}},
		{"all", U64SpanList{{0, 10}, {20, 30}}, U64Span{0, 30}, U64SpanList{}},
	} {
		ctx := log.Enter(ctx, test.name)
		test.list.Remove(test.with)
		assert.For(ctx, "list").ThatSlice(test.list).Equals(test.expected)
	}
}

func TestSpanListCovers(t *testing.T) {
	ctx := log.Testing(t)
	l := U64SpanList{{0, 10}, {20, 30}}
	assert.For(ctx, "inside").ThatBoolean(l.Covers(U64Span{2, 8})).IsTrue()
	assert.For(ctx, "gap").ThatBoolean(l.Covers(U64Span{5, 25})).IsFalse()
	assert.For(ctx, "total").That(l.Total()).Equals(uint64(20))
}
