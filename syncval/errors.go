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

package syncval

import "github.com/google/syncval/core/fault"

const (
	ErrNotRecording    = fault.Const("command buffer is not recording")
	ErrNotExecutable   = fault.Const("command buffer is not executable")
	ErrBufferPending   = fault.Const("command buffer is pending")
	ErrReservedHandle  = fault.Const("resource handle 0 is reserved")
	ErrResourceExists  = fault.Const("resource already exists")
	ErrUnknownResource = fault.Const("unknown resource")
	ErrEmptyResource   = fault.Const("resource has no content")
	ErrUnknownFence    = fault.Const("unknown fence")
	ErrNotSignaled     = fault.Const("fence is not signalled")
	ErrQueuePending    = fault.Const("queue has submissions waiting on semaphores")
)
