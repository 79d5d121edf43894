// Copyright 2026 The gosse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ssecast provides an optional background façade over
// sse.EventSource for callers who would rather register callbacks than
// drive a pull loop themselves.
package ssecast

import (
	"context"

	"go.uber.org/zap"

	"github.com/ivcap-works/gosse/pkg/sse"
)

// Handlers are callbacks Background dispatches from its single reader
// goroutine. Every field is optional; a nil handler is simply skipped. As
// with EventSource's own push signals, handlers must not block, and a
// panic inside one is recovered, logged, and otherwise ignored so it
// cannot take down the reader goroutine.
type Handlers struct {
	OnOpen    func()
	OnMessage func(*sse.Message)
	OnComment func(sse.CommentEvent)
	OnRetry   func(sse.SetRetryDelayEvent)
	OnClosed  func()
	OnFault   func(error)
	OnError   func(error) // terminal error from ReadAnyEvent itself
}

// Background runs an EventSource's read loop on its own goroutine,
// dispatching parsed events to Handlers synchronously from that goroutine.
type Background struct {
	es      *sse.EventSource
	h       Handlers
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start begins reading es in the background, dispatching to h until ctx
// is cancelled, es.Close is called, or ReadAnyEvent returns a terminal
// error (delivered to h.OnError). logger may be nil.
func Start(ctx context.Context, es *sse.EventSource, h Handlers, logger *zap.Logger) *Background {
	if logger == nil {
		logger = zap.NewNop()
	}
	runCtx, cancel := context.WithCancel(ctx)
	b := &Background{es: es, h: h, logger: logger, cancel: cancel, done: make(chan struct{})}
	go b.run(runCtx)
	return b
}

// Stop cancels the background read loop and closes the underlying
// EventSource, then waits for the reader goroutine to exit.
func (b *Background) Stop() {
	b.cancel()
	b.es.Close()
	<-b.done
}

func (b *Background) run(ctx context.Context) {
	defer close(b.done)
	for {
		ev, err := b.es.ReadAnyEvent(ctx)
		if err != nil {
			b.dispatch(func() {
				if b.h.OnError != nil {
					b.h.OnError(err)
				}
			})
			return
		}
		b.dispatchEvent(ev)
	}
}

func (b *Background) dispatchEvent(ev sse.Event) {
	switch e := ev.(type) {
	case sse.StartedEvent:
		b.dispatch(func() {
			if b.h.OnOpen != nil {
				b.h.OnOpen()
			}
		})
	case *sse.Message:
		b.dispatch(func() {
			if b.h.OnMessage != nil {
				b.h.OnMessage(e)
			}
		})
	case sse.CommentEvent:
		b.dispatch(func() {
			if b.h.OnComment != nil {
				b.h.OnComment(e)
			}
		})
	case sse.SetRetryDelayEvent:
		b.dispatch(func() {
			if b.h.OnRetry != nil {
				b.h.OnRetry(e)
			}
		})
	case sse.ClosedEvent:
		b.dispatch(func() {
			if b.h.OnClosed != nil {
				b.h.OnClosed()
			}
		})
	case *sse.FaultedEvent:
		b.dispatch(func() {
			if b.h.OnFault != nil {
				b.h.OnFault(e.Err)
			}
		})
	}
}

// dispatch recovers a panicking handler so it cannot terminate the reader
// goroutine; it is logged and otherwise swallowed, matching the "Error
// handler itself throws" rule for the Error signal.
func (b *Background) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("ssecast: handler panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
