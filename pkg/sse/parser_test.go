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
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestParser(t *testing.T, input string, capacity int, opts ParserOptions) *EventParser {
	t.Helper()
	scanner := NewLineScanner(strings.NewReader(input), capacity)
	return NewEventParser(scanner, opts)
}

// drainEvents reads events until the stream reports a clean close, failing
// the test on any other error.
func drainEvents(t *testing.T, p *EventParser) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := p.NextEvent(context.Background())
		if err != nil {
			if errors.Is(err, ErrStreamClosedByServer) {
				return events
			}
			t.Fatalf("NextEvent: %v", err)
		}
		events = append(events, ev)
	}
}

func messageData(t *testing.T, m *Message) string {
	t.Helper()
	d, err := m.ReadFully()
	if err != nil {
		t.Fatalf("ReadFully: %v", err)
	}
	return d
}

// S1: a comment-only stream.
func TestParserScenarioS1Comment(t *testing.T) {
	p := newTestParser(t, ":hello\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %#v", len(events), events)
	}
	c, ok := events[0].(CommentEvent)
	if !ok || c.Text != "hello" {
		t.Fatalf("event = %#v, want CommentEvent{\"hello\"}", events[0])
	}
}

// S2: default event name, multi-line UTF-8 data, and a named event.
func TestParserScenarioS2MultiLineUnicodeData(t *testing.T) {
	input := "data: value1\n\nevent: event2\ndata: ça\ndata: qué\n\n"
	p := newTestParser(t, input, 1000, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %#v", len(events), events)
	}
	m1, ok := events[0].(*Message)
	if !ok || m1.Name != "message" || messageData(t, m1) != "value1" {
		t.Fatalf("event 0 = %#v", events[0])
	}
	m2, ok := events[1].(*Message)
	if !ok || m2.Name != "event2" || messageData(t, m2) != "ça\nqué" {
		t.Fatalf("event 1 = %#v, data=%q", events[1], messageData(t, m2))
	}
}

// S3: id: sets LastEventID on the message.
func TestParserScenarioS3LastEventID(t *testing.T) {
	p := newTestParser(t, "id:200\nevent: put\ndata: x\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %#v", len(events), events)
	}
	m := events[0].(*Message)
	if m.Name != "put" || messageData(t, m) != "x" || m.LastEventID != "200" {
		t.Fatalf("message = %#v", m)
	}
}

// S4: retry: sets SetRetryDelayEvent in milliseconds.
func TestParserScenarioS4Retry(t *testing.T) {
	p := newTestParser(t, "retry: 3000\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %#v", len(events), events)
	}
	r, ok := events[0].(SetRetryDelayEvent)
	if !ok || r.Delay != 3000*time.Millisecond {
		t.Fatalf("event = %#v", events[0])
	}
}

func TestParserRetryIgnoresNonNumericAndNegative(t *testing.T) {
	for _, v := range []string{"retry: abc\n\n", "retry: -5\n\n", "retry: 3.5\n\n", "retry:\n\n"} {
		p := newTestParser(t, v, 1000, ParserOptions{})
		events := drainEvents(t, p)
		if len(events) != 0 {
			t.Errorf("input %q produced events %#v, want none", v, events)
		}
	}
}

func TestParserIDWithNULIsIgnored(t *testing.T) {
	p := newTestParser(t, "id:abc\x00def\ndata: x\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	m := events[0].(*Message)
	if m.LastEventID != "" {
		t.Fatalf("LastEventID = %q, want empty (NUL id must be ignored)", m.LastEventID)
	}
}

func TestParserEmptyIDClearsLastEventID(t *testing.T) {
	// Per spec.md's resolved open question: an empty id: value sets
	// LastEventID to the empty string, distinct from no id: field at all.
	p := newTestParser(t, "id:123\ndata: a\n\nid:\ndata: b\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	m1 := events[0].(*Message)
	if m1.LastEventID != "123" {
		t.Fatalf("first message LastEventID = %q, want 123", m1.LastEventID)
	}
	m2 := events[1].(*Message)
	if m2.LastEventID != "" {
		t.Fatalf("second message LastEventID = %q, want empty string", m2.LastEventID)
	}
}

func TestParserUnknownFieldIgnored(t *testing.T) {
	p := newTestParser(t, "foo: bar\ndata: x\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if got := messageData(t, events[0].(*Message)); got != "x" {
		t.Fatalf("data = %q, want x", got)
	}
}

func TestParserBlankLineWithoutDataEmitsNothing(t *testing.T) {
	p := newTestParser(t, "event: foo\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 0 {
		t.Fatalf("got %#v, want no events (message with no data: is not emitted)", events)
	}
}

func TestParserFieldNameLongerThanBufferIsSkipped(t *testing.T) {
	// A field-name run longer than the buffer cannot contain a ':' within
	// the buffer window, so the whole line is discarded.
	input := strings.Repeat("x", 50) + ": value\ndata: kept\n\n"
	p := newTestParser(t, input, 8, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %#v", len(events), events)
	}
	if got := messageData(t, events[0].(*Message)); got != "kept" {
		t.Fatalf("data = %q, want kept", got)
	}
}

func TestParserDataSpansMultipleReads(t *testing.T) {
	payload := strings.Repeat("A", 5000)
	input := "data: " + payload + "\n\n"
	p := newTestParser(t, input, 16, ParserOptions{})
	events := drainEvents(t, p)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if got := messageData(t, events[0].(*Message)); got != payload {
		t.Fatalf("data length = %d, want %d", len(got), len(payload))
	}
}

// Chunk independence (invariant 2): the same logical input must parse to
// the same events regardless of how the scanner's buffer happens to slice
// it into chunks.
func TestParserChunkIndependence(t *testing.T) {
	input := "id:77\nevent: put\ndata: line one\ndata: line two\n\n:a comment\n\n"
	// Capacities stay at or above the longest field name in play ("event")
	// plus room for its colon, since a buffer shorter than the longest
	// legal field name intentionally discards that line by design (see
	// TestParserFieldNameLongerThanBufferIsSkipped).
	var prev []string
	for _, capacity := range []int{8, 13, 32, 1000} {
		p := newTestParser(t, input, capacity, ParserOptions{})
		events := drainEvents(t, p)
		var got []string
		for _, ev := range events {
			switch e := ev.(type) {
			case *Message:
				got = append(got, "msg:"+e.Name+":"+messageData(t, e)+":"+e.LastEventID)
			case CommentEvent:
				got = append(got, "comment:"+e.Text)
			default:
				got = append(got, "other")
			}
		}
		if prev != nil {
			if len(got) != len(prev) {
				t.Fatalf("capacity %d produced %v, previous capacity produced %v", capacity, got, prev)
			}
			for i := range got {
				if got[i] != prev[i] {
					t.Fatalf("capacity %d differs at %d: got %q, want %q", capacity, i, got[i], prev[i])
				}
			}
		}
		prev = got
	}
}

func TestParserStreamingDataMode(t *testing.T) {
	input := "data: first\ndata: second\n\n"
	p := newTestParser(t, input, 1000, ParserOptions{StreamEventData: true})
	ev, err := p.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	m, ok := ev.(*Message)
	if !ok || !m.Streaming() {
		t.Fatalf("event = %#v, want a streaming message", ev)
	}
	b, err := io.ReadAll(m.Reader())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got := string(b); got != "first\nsecond" {
		t.Fatalf("streamed data = %q, want %q", got, "first\nsecond")
	}
}

func TestParserStreamingDataEqualsBufferedData(t *testing.T) {
	// Invariant 5: the streamed bytes must equal what non-streaming mode
	// would have buffered.
	input := "data: alpha\ndata: beta\ndata: gamma\n\n"
	buffered := newTestParser(t, input, 1000, ParserOptions{})
	bev, _ := buffered.NextEvent(context.Background())
	want := messageData(t, bev.(*Message))

	streaming := newTestParser(t, input, 1000, ParserOptions{StreamEventData: true})
	sev, err := streaming.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	got, err := sev.(*Message).ReadFully()
	if err != nil {
		t.Fatalf("ReadFully: %v", err)
	}
	if got != want {
		t.Fatalf("streaming data %q != buffered data %q", got, want)
	}
}

func TestParserStreamingDisabledWithoutExpectedFields(t *testing.T) {
	// §4.2.1: if ExpectFields names "event" but data: arrives before any
	// event: field was seen, that message must fall back to buffering.
	input := "data: x\nevent: late\n\n"
	p := newTestParser(t, input, 1000, ParserOptions{
		StreamEventData: true,
		ExpectFields:    map[string]bool{"event": true},
	})
	ev, err := p.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	m := ev.(*Message)
	if m.Streaming() {
		t.Fatalf("expected message to be buffered, not streaming, since event: follows data:")
	}
	if m.Name != "late" || messageData(t, m) != "x" {
		t.Fatalf("message = %#v", m)
	}
}

func TestParserStreamingEligibleWhenExpectedFieldSeenFirst(t *testing.T) {
	input := "event: early\ndata: x\n\n"
	p := newTestParser(t, input, 1000, ParserOptions{
		StreamEventData: true,
		ExpectFields:    map[string]bool{"event": true},
	})
	ev, err := p.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	m := ev.(*Message)
	if !m.Streaming() {
		t.Fatalf("expected streaming message once event: was seen before data:")
	}
	if got := messageData(t, m); got != "x" {
		t.Fatalf("data = %q, want x", got)
	}
}

func TestParserPrematureNextEventAbandonsStream(t *testing.T) {
	input := "data: first\ndata: second\n\nevent: next\ndata: y\n\n"
	p := newTestParser(t, input, 1000, ParserOptions{StreamEventData: true})
	ev, err := p.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	if !ev.(*Message).Streaming() {
		t.Fatalf("expected first message to stream")
	}
	// Calling NextEvent again without draining the reader abandons the
	// rest of that message and should skip straight to the next one.
	ev2, err := p.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	m2, ok := ev2.(*Message)
	if !ok || m2.Name != "next" {
		t.Fatalf("event = %#v, want the following message", ev2)
	}
}

func TestParserStreamingIncompleteMessageAtEOF(t *testing.T) {
	input := "data: only line, no terminating blank line\n"
	p := newTestParser(t, input, 1000, ParserOptions{StreamEventData: true})
	ev, err := p.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("NextEvent: %v", err)
	}
	m := ev.(*Message)
	_, err = io.ReadAll(m.Reader())
	if !errors.Is(err, ErrStreamClosedWithIncompleteMessage) {
		t.Fatalf("err = %v, want ErrStreamClosedWithIncompleteMessage", err)
	}
}

func TestParserCommentLeadingSpaceStripped(t *testing.T) {
	p := newTestParser(t, ": has a leading space\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	c := events[0].(CommentEvent)
	if c.Text != "has a leading space" {
		t.Fatalf("comment text = %q", c.Text)
	}
}

func TestParserValueLeadingSpaceStrippedOnlyOnce(t *testing.T) {
	p := newTestParser(t, "data:  two spaces\n\n", 1000, ParserOptions{})
	events := drainEvents(t, p)
	if got := messageData(t, events[0].(*Message)); got != " two spaces" {
		t.Fatalf("data = %q, want %q (only one leading space stripped)", got, " two spaces")
	}
}

func TestParserOriginPropagatesToMessages(t *testing.T) {
	p := newTestParser(t, "data: x\n\n", 1000, ParserOptions{Origin: "https://example.com/events"})
	events := drainEvents(t, p)
	if got := events[0].(*Message).Origin; got != "https://example.com/events" {
		t.Fatalf("Origin = %q", got)
	}
}
