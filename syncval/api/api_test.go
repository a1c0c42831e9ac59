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

package api_test

import (
	"testing"

	"github.com/google/syncval/core/assert"
	"github.com/google/syncval/core/log"
	"github.com/google/syncval/syncval/api"
)

func TestStageScopes(t *testing.T) {
	ctx := log.Testing(t)
	queue := api.StageAllCommands.Concrete()
	for _, test := range []struct {
		name        string
		stage       api.Stage
		source      api.Stage
		destination api.Stage
	}{
		{"transfer", api.StageTransfer, api.StageTransfer, api.StageTransfer},
		{"fragment", api.StageFragmentShader,
			api.StageDrawIndirect | api.StageVertexInput | api.StageVertexShader |
				api.StageEarlyFragmentTests | api.StageFragmentShader,
			api.StageFragmentShader | api.StageLateFragmentTests | api.StageColorAttachmentOutput},
		{"compute", api.StageComputeShader,
			api.StageDrawIndirect | api.StageComputeShader,
			api.StageComputeShader},
		{"top of pipe", api.StageTopOfPipe, api.StageNone, queue},
		{"bottom of pipe", api.StageBottomOfPipe, queue, api.StageNone},
		{"all commands", api.StageAllCommands, queue, queue},
		{"host", api.StageHost, api.StageHost, api.StageHost},
	} {
		ctx := log.Enter(ctx, test.name)
		assert.For(ctx, "source").That(test.stage.Source()).Equals(test.source)
		assert.For(ctx, "destination").That(test.stage.Destination()).Equals(test.destination)
	}
	assert.For(ctx, "all commands excludes host").That(queue&api.StageHost).Equals(api.StageNone)
	assert.For(ctx, "none").That(api.StageNone.Concrete()).Equals(queue)
}

func TestParse(t *testing.T) {
	ctx := log.Testing(t)
	s, err := api.ParseStage("Transfer|computeShader")
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "stage").That(s).Equals(api.StageTransfer | api.StageComputeShader)
	assert.For(ctx, "string").ThatString(s.String()).Equals("ComputeShader|Transfer")
	_, err = api.ParseStage("Transfer|Warp")
	assert.For(ctx, "bad stage").ThatError(err).Failed()

	a, err := api.ParseAccess("ShaderRead | TransferWrite")
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "access").That(a).Equals(api.AccessShaderRead | api.AccessTransferWrite)

	l, err := api.ParseLayout("colorattachment")
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "layout").That(l).Equals(api.LayoutColorAttachment)

	k, err := api.ParseAccessKind("layouttransition")
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "kind").That(k).Equals(api.LayoutTransition)
}

func TestScope(t *testing.T) {
	ctx := log.Testing(t)
	s := api.NewScope(api.StageTransfer.Destination(), api.AccessMemoryRead)
	assert.For(ctx, "covers transfer read").ThatBoolean(s.Covers(api.StageTransfer, api.AccessTransferRead)).IsTrue()
	assert.For(ctx, "not transfer write").ThatBoolean(s.Covers(api.StageTransfer, api.AccessTransferWrite)).IsFalse()
	assert.For(ctx, "not compute").ThatBoolean(s.Covers(api.StageComputeShader, api.AccessShaderRead)).IsFalse()

	unsupported := api.NewScope(api.StageTransfer, api.AccessShaderRead)
	assert.For(ctx, "unsupported access").ThatBoolean(unsupported.Empty()).IsTrue()

	u := s.Union(api.NewScope(api.StageComputeShader, api.AccessShaderRead))
	assert.For(ctx, "union compute").ThatBoolean(u.Covers(api.StageComputeShader, api.AccessShaderRead)).IsTrue()
	assert.For(ctx, "union transfer").ThatBoolean(u.Covers(api.StageTransfer, api.AccessTransferRead)).IsTrue()
	assert.For(ctx, "includes").ThatBoolean(u.Includes(api.StageAllCommands, api.AccessShaderRead)).IsTrue()
	assert.For(ctx, "supported none").That(api.Supported(api.StageNone)).Equals(api.AccessNone)
}

func TestClock(t *testing.T) {
	ctx := log.Testing(t)
	c := api.Clock{1: 5}
	c.Advance(1, 3)
	c.Advance(2, 7)
	assert.For(ctx, "no regression").ThatBoolean(c.Synced(1, 5)).IsTrue()
	assert.For(ctx, "advanced").ThatBoolean(c.Synced(2, 7)).IsTrue()
	assert.For(ctx, "future").ThatBoolean(c.Synced(2, 8)).IsFalse()
	assert.For(ctx, "unknown queue").ThatBoolean(c.Synced(3, 1)).IsFalse()

	d := c.Clone()
	d.Merge(api.Clock{1: 9, 3: 1})
	assert.For(ctx, "original untouched").ThatBoolean(c.Synced(1, 9)).IsFalse()
	assert.For(ctx, "queues").ThatSlice(d.Queues()).Equals([]api.QueueID{1, 2, 3})
}

func TestRoleLayouts(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		role    api.Role
		layout  api.Layout
		allowed bool
	}{
		{api.RoleColor, api.LayoutColorAttachment, true},
		{api.RoleColor, api.LayoutShaderReadOnly, false},
		{api.RoleResolve, api.LayoutGeneral, true},
		{api.RoleInput, api.LayoutShaderReadOnly, true},
		{api.RoleInput, api.LayoutColorAttachment, false},
		{api.RoleDepthStencil, api.LayoutDepthStencilReadOnly, true},
		{api.RoleDepthStencil, api.LayoutTransferDst, false},
	} {
		ctx := log.Enter(ctx, test.role.String()+"/"+test.layout.String())
		assert.For(ctx, "allowed").ThatBoolean(test.role.Allows(test.layout)).Equals(test.allowed)
	}
}
