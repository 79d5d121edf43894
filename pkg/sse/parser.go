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
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"time"
)

// valueAccumGrowthThreshold bounds how large EventParser's scratch value
// buffer is allowed to grow before it is dropped instead of reused, so one
// pathologically long field header doesn't pin memory for the life of the
// stream.
const valueAccumGrowthThreshold = 4096

type fieldKind int

const (
	fieldUnknown fieldKind = iota
	fieldEvent
	fieldData
	fieldID
	fieldRetry
)

func classifyField(name []byte) fieldKind {
	switch string(name) {
	case "event":
		return fieldEvent
	case "data":
		return fieldData
	case "id":
		return fieldID
	case "retry":
		return fieldRetry
	default:
		return fieldUnknown
	}
}

// ParserOptions configures an EventParser.
type ParserOptions struct {
	// StreamEventData enables streaming data mode: every Message whose
	// expect-fields precondition is met is delivered with an incremental
	// Reader instead of a buffered Data string.
	StreamEventData bool
	// ExpectFields names SSE fields ("event", "id") that must have already
	// been seen before "data:" begins for a message to be eligible for
	// streaming; if any named field has not yet been seen, that message is
	// buffered normally instead.
	ExpectFields map[string]bool
	// Origin is reported on every Message this parser produces.
	Origin string
}

// EventParser consumes LineChunks from a LineScanner and assembles them
// into SSE events. It is not safe for concurrent use: exactly one
// NextEvent call may be outstanding at a time, and while a streaming
// Message's DataReader is open, NextEvent must not be called again until
// that reader is closed or fully consumed.
type EventParser struct {
	scanner *LineScanner
	opts    ParserOptions
	ctx     context.Context

	atLineStart bool
	lineLength  int

	curFieldNameKnown bool
	curFieldKind      fieldKind
	curFieldIsComment bool

	valueAccum []byte

	haveEventField bool
	eventName      string
	idSeenThisMsg  bool
	lastEventID    string

	haveData bool
	dataBuf  bytes.Buffer

	skipRestOfLine    bool
	skipRestOfMessage bool

	streaming *DataReader
}

// NewEventParser returns an EventParser reading chunks from scanner.
func NewEventParser(scanner *LineScanner, opts ParserOptions) *EventParser {
	return &EventParser{scanner: scanner, opts: opts, atLineStart: true}
}

// NextEvent returns the next parsed event, blocking on the underlying
// LineScanner as needed. If a previous Message's streaming DataReader was
// not closed or fully consumed, it is abandoned first and the remainder of
// that message is skipped.
func (p *EventParser) NextEvent(ctx context.Context) (Event, error) {
	p.ctx = ctx
	if p.streaming != nil {
		p.abandonStreaming()
	}
	for {
		chunk, err := p.scanner.Read(ctx)
		if err != nil {
			return nil, err
		}
		ev, ok, err := p.handleChunk(chunk)
		if err != nil {
			return nil, err
		}
		if ok {
			return ev, nil
		}
	}
}

func (p *EventParser) handleChunk(c LineChunk) (Event, bool, error) {
	freshLine := p.atLineStart
	if freshLine {
		p.lineLength = 0
		p.curFieldNameKnown = false
	}
	p.atLineStart = c.EndOfLine

	if freshLine && c.EndOfLine && c.Span.Len() == 0 {
		return p.onBlankLine()
	}

	p.lineLength += c.Span.Len()

	if p.skipRestOfLine {
		if c.EndOfLine {
			p.skipRestOfLine = false
		}
		return nil, false, nil
	}
	if p.skipRestOfMessage {
		return nil, false, nil
	}

	var val []byte
	isNewField := false
	if !p.curFieldNameKnown {
		data := c.Span.Bytes()
		idx := bytes.IndexByte(data, ':')
		if idx == -1 {
			if !c.EndOfLine {
				p.skipRestOfLine = true
				return nil, false, nil
			}
			p.curFieldNameKnown = true
			p.curFieldKind = classifyField(data)
			p.curFieldIsComment = false
			return p.consumeValue(nil, true, true)
		}
		name := data[:idx]
		v := data[idx+1:]
		if len(v) > 0 && v[0] == ' ' {
			v = v[1:]
		}
		p.curFieldNameKnown = true
		p.curFieldIsComment = idx == 0
		if !p.curFieldIsComment {
			p.curFieldKind = classifyField(name)
		} else {
			p.curFieldKind = fieldUnknown
		}
		isNewField = true
		val = v
	} else {
		val = c.Span.Bytes()
	}

	return p.consumeValue(val, isNewField, c.EndOfLine)
}

func (p *EventParser) consumeValue(val []byte, isNewField, endOfLine bool) (Event, bool, error) {
	if p.curFieldKind == fieldData {
		return p.consumeData(val, isNewField, endOfLine)
	}

	if isNewField {
		p.valueAccum = p.valueAccum[:0]
	}
	if !endOfLine {
		p.valueAccum = append(p.valueAccum, val...)
		return nil, false, nil
	}
	full := val
	if len(p.valueAccum) > 0 {
		p.valueAccum = append(p.valueAccum, val...)
		full = p.valueAccum
	}
	ev, emit := p.finishField(full)
	p.shrinkValueAccum()
	p.curFieldNameKnown = false
	return ev, emit, nil
}

func (p *EventParser) consumeData(val []byte, isNewField, endOfLine bool) (Event, bool, error) {
	if isNewField && p.streaming == nil && !p.haveData && p.streamingEligible() {
		reader := &DataReader{p: p}
		if len(val) > 0 {
			reader.pending = append(reader.pending, val...)
			reader.wroteAny = true
		}
		p.streaming = reader
		if endOfLine {
			p.curFieldNameKnown = false
		}
		msg := &Message{Name: p.currentEventName(), LastEventID: p.lastEventID, Origin: p.opts.Origin, streamReader: reader}
		return msg, true, nil
	}

	p.writeData(val, isNewField)
	if endOfLine {
		p.curFieldNameKnown = false
	}
	return nil, false, nil
}

func (p *EventParser) writeData(val []byte, isNewField bool) {
	if p.streaming != nil {
		if isNewField && p.streaming.wroteAny {
			p.streaming.pending = append(p.streaming.pending, '\n')
		}
		p.streaming.pending = append(p.streaming.pending, val...)
		p.streaming.wroteAny = true
		return
	}
	if isNewField {
		if p.haveData {
			p.dataBuf.WriteByte('\n')
		}
		p.haveData = true
	}
	p.dataBuf.Write(val)
}

func (p *EventParser) finishField(full []byte) (Event, bool) {
	switch {
	case p.curFieldIsComment:
		return CommentEvent{Text: string(full)}, true
	case p.curFieldKind == fieldEvent:
		p.haveEventField = true
		p.eventName = string(full)
		return nil, false
	case p.curFieldKind == fieldID:
		p.idSeenThisMsg = true
		if bytes.IndexByte(full, 0) >= 0 {
			return nil, false
		}
		p.lastEventID = string(full)
		return nil, false
	case p.curFieldKind == fieldRetry:
		n, ok := parseNonNegativeInt(full)
		if !ok {
			return nil, false
		}
		return SetRetryDelayEvent{Delay: time.Duration(n) * time.Millisecond}, true
	default:
		return nil, false
	}
}

func (p *EventParser) onBlankLine() (Event, bool, error) {
	if p.streaming != nil {
		p.streaming.done = true
		p.streaming = nil
		p.resetMessage()
		return nil, false, nil
	}
	if p.skipRestOfMessage {
		p.skipRestOfMessage = false
		p.resetMessage()
		return nil, false, nil
	}
	if !p.haveData {
		p.resetMessage()
		return nil, false, nil
	}
	msg := &Message{
		Name:        p.currentEventName(),
		dataStr:     p.dataBuf.String(),
		LastEventID: p.lastEventID,
		Origin:      p.opts.Origin,
	}
	p.resetMessage()
	return msg, true, nil
}

func (p *EventParser) currentEventName() string {
	if p.haveEventField {
		return p.eventName
	}
	return "message"
}

func (p *EventParser) resetMessage() {
	p.dataBuf.Reset()
	p.haveData = false
	p.haveEventField = false
	p.eventName = ""
	p.idSeenThisMsg = false
}

func (p *EventParser) shrinkValueAccum() {
	if cap(p.valueAccum) > valueAccumGrowthThreshold {
		p.valueAccum = nil
	} else {
		p.valueAccum = p.valueAccum[:0]
	}
}

func (p *EventParser) streamingEligible() bool {
	if !p.opts.StreamEventData {
		return false
	}
	for name := range p.opts.ExpectFields {
		switch name {
		case "event":
			if !p.haveEventField {
				return false
			}
		case "id":
			if !p.idSeenThisMsg {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// abandonStreaming is called when NextEvent is invoked while a streaming
// DataReader from a previous Message has not been closed or drained to
// EOF. It closes the reader and skips the remainder of that message.
func (p *EventParser) abandonStreaming() {
	r := p.streaming
	p.streaming = nil
	p.skipRestOfMessage = true
	if r != nil {
		r.done = true
	}
}

func (p *EventParser) fillStreamingPending(r *DataReader) error {
	for len(r.pending) == 0 && !r.done {
		chunk, err := p.scanner.Read(p.ctx)
		if err != nil {
			r.done = true
			if errors.Is(err, ErrStreamClosedByServer) {
				return ErrStreamClosedWithIncompleteMessage
			}
			return err
		}
		if _, _, err := p.handleChunk(chunk); err != nil {
			r.done = true
			return err
		}
	}
	return nil
}

func parseNonNegativeInt(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DataReader is the incremental reader backing a streaming-mode Message.
// It yields the bytes of successive "data:" lines with a single '\n'
// inserted between them, and reaches EOF at the blank line terminating the
// message. Reading it drives the owning EventParser's underlying
// LineScanner directly; no other EventParser method may be called
// concurrently with a Read.
type DataReader struct {
	p       *EventParser
	pending []byte
	wroteAny bool
	done    bool
	closed  bool
}

func (r *DataReader) Read(dst []byte) (int, error) {
	if len(r.pending) == 0 && !r.done {
		if err := r.p.fillStreamingPending(r); err != nil {
			return 0, err
		}
	}
	if len(r.pending) > 0 {
		n := copy(dst, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}
	return 0, io.EOF
}

// Close releases the reader. If the message had not yet been fully
// consumed (blank line not yet reached), the parser skips the remainder of
// that message on its next NextEvent call.
func (r *DataReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.p.streaming == r {
		r.p.abandonStreaming()
	}
	return nil
}
