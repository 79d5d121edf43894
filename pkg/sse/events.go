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

package sse

import (
	"io"
	"time"
)

// Event is the common interface implemented by every value an EventParser
// or EventSource can hand to a caller: CommentEvent, SetRetryDelayEvent,
// *Message, StartedEvent, *FaultedEvent and ClosedEvent.
type Event interface {
	isEvent()
}

// CommentEvent is a line beginning with ':'. Text is the portion after the
// colon with at most one leading space stripped.
type CommentEvent struct {
	Text string
}

func (CommentEvent) isEvent() {}

// SetRetryDelayEvent is emitted when a valid "retry:" field is parsed.
type SetRetryDelayEvent struct {
	Delay time.Duration
}

func (SetRetryDelayEvent) isEvent() {}

// StartedEvent is synthesized by EventSource when a connection is
// successfully opened.
type StartedEvent struct{}

func (StartedEvent) isEvent() {}

// FaultedEvent is synthesized by EventSource when a connect or read
// attempt fails and the configured ErrorStrategy chose to continue.
type FaultedEvent struct {
	Err error
}

func (*FaultedEvent) isEvent() {}

// ClosedEvent is synthesized by EventSource whenever the current
// connection ends, whether cleanly or due to an error that will be
// retried.
type ClosedEvent struct{}

func (ClosedEvent) isEvent() {}

// Message is a parsed SSE message. Its payload is available either as a
// buffered string (Data) or, for a message negotiated under streaming data
// mode, only through Reader/ReadFully; the two are mutually exclusive for
// any one Message.
type Message struct {
	// Name is the event's type; defaults to "message" when the stream did
	// not supply an "event:" field.
	Name string
	// LastEventID is the most recently parsed non-NUL "id:" value at the
	// time this message was dispatched; it may predate this message.
	LastEventID string
	// Origin is the URI the owning ConnectStrategy reports for every
	// message it produces.
	Origin string

	dataStr      string
	streamReader *DataReader
}

func (*Message) isEvent() {}

// Streaming reports whether this message's payload is only available
// through Reader/ReadFully.
func (m *Message) Streaming() bool { return m.streamReader != nil }

// Reader returns the incremental data reader for a streaming message, or
// nil if the message was buffered normally.
func (m *Message) Reader() *DataReader { return m.streamReader }

// Data returns the buffered payload. It panics if called on a streaming
// message; call ReadFully first, or consume Reader directly.
func (m *Message) Data() string {
	if m.streamReader != nil {
		panic("sse: Message.Data called on a streaming message; call ReadFully or use Reader")
	}
	return m.dataStr
}

// ReadFully materializes a streaming message's payload into a buffered
// string, consuming and closing the reader so the event outlives the next
// parser read. It is a no-op for an already-buffered message.
func (m *Message) ReadFully() (string, error) {
	if m.streamReader == nil {
		return m.dataStr, nil
	}
	r := m.streamReader
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.dataStr = string(b)
	m.streamReader = nil
	return m.dataStr, nil
}

// ReadyState is EventSource's lifecycle state.
type ReadyState int

const (
	StateRaw ReadyState = iota
	StateConnecting
	StateOpen
	StateClosed
	StateShutdown
)

func (s ReadyState) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
