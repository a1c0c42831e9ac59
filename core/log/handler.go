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
	"io"
	"os"
	"sync"
)

// Handler is the handler of log messages.
type Handler interface {
	Handle(*Message)
	Close()
}

// NewHandler returns a Handler that calls handle for each message and close
// when the handler is closed.
func NewHandler(handle func(*Message), close func()) Handler {
	if close == nil {
		close = func() {}
	}
	return handler{handle, close}
}

type handler struct {
	handle func(*Message)
	close  func()
}

func (h handler) Handle(m *Message) { h.handle(m) }
func (h handler) Close()            { h.close() }

// Writer returns a Handler that prints messages to to using the style s.
// Writes are serialized so the Handler may be shared between goroutines.
func Writer(s Style, to io.Writer) Handler {
	mutex := sync.Mutex{}
	return handler{
		handle: func(m *Message) {
			mutex.Lock()
			defer mutex.Unlock()
			fmt.Fprintln(to, s.Print(m))
		},
		close: func() {},
	}
}

// Stdout returns a Handler that writes to os.Stdout using the style s.
func Stdout(s Style) Handler { return Writer(s, os.Stdout) }

// Stderr returns a Handler that writes to os.Stderr using the style s.
func Stderr(s Style) Handler { return Writer(s, os.Stderr) }

// Broadcaster forwards all messages to all supplied handlers.
type Broadcaster struct {
	mutex    sync.RWMutex
	handlers []Handler
}

// Broadcast returns a Broadcaster that forwards messages to handlers.
func Broadcast(handlers ...Handler) *Broadcaster {
	return &Broadcaster{handlers: handlers}
}

// Listen adds h to the list of handlers that receive messages.
func (b *Broadcaster) Listen(h Handler) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.handlers = append(b.handlers, h)
}

// Handle forwards m to every listening handler.
func (b *Broadcaster) Handle(m *Message) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	for _, h := range b.handlers {
		h.Handle(m)
	}
}

// Close closes every listening handler.
func (b *Broadcaster) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, h := range b.handlers {
		h.Close()
	}
	b.handlers = nil
}
