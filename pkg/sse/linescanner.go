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
)

// DefaultLineScannerCapacity is the buffer size LineScanner uses when none
// is supplied.
const DefaultLineScannerCapacity = 1000

// LineChunk is one output of LineScanner.Read: a run of bytes ending in a
// line terminator, or a run of bytes that filled the buffer before any
// terminator appeared. Span never includes the terminator itself.
type LineChunk struct {
	Span      ByteSpan
	EndOfLine bool
}

// LineScanner fills a fixed-capacity buffer from an io.Reader and splits it
// into LineChunks, handling CR, LF and CRLF terminators including the case
// where a lone CR is the last byte currently buffered. It never blocks its
// caller on a line boundary it has not yet seen: if the buffer fills
// before a terminator is found, it returns the partial run immediately.
//
// The returned ByteSpan aliases LineScanner's internal buffer and is only
// valid until the next call to Read.
type LineScanner struct {
	r   io.Reader
	buf []byte

	start   int // start of unconsumed valid data
	end     int // end of valid data
	scanned int // [start:scanned) is known to contain no terminator

	lastWasCR bool
}

// NewLineScanner returns a LineScanner reading from r with the given
// buffer capacity. A non-positive capacity selects DefaultLineScannerCapacity.
func NewLineScanner(r io.Reader, capacity int) *LineScanner {
	if capacity <= 0 {
		capacity = DefaultLineScannerCapacity
	}
	return &LineScanner{r: r, buf: make([]byte, capacity)}
}

// Read returns the next chunk. It blocks only on the underlying reader; a
// cancelled ctx aborts the call without making further progress, though
// the underlying read in flight is not itself interrupted (the caller's
// ConnectStrategy Closer is what unblocks it — see EventSource).
func (s *LineScanner) Read(ctx context.Context) (LineChunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return LineChunk{}, err
		}

		if s.start > 0 {
			copy(s.buf, s.buf[s.start:s.end])
			s.end -= s.start
			if s.scanned > s.start {
				s.scanned -= s.start
			} else {
				s.scanned = 0
			}
			s.start = 0
		}

		if s.lastWasCR && s.start < s.end {
			if s.buf[s.start] == '\n' {
				s.start++
			}
			s.lastWasCR = false
			if s.scanned < s.start {
				s.scanned = s.start
			}
			continue
		}

		scanFrom := s.scanned
		if scanFrom < s.start {
			scanFrom = s.start
		}
		if chunk, ok := s.findTerminator(scanFrom); ok {
			return chunk, nil
		}
		s.scanned = s.end

		if s.end-s.start >= len(s.buf) {
			span := NewByteSpan(s.buf, s.start, s.end-s.start)
			s.start = s.end
			s.scanned = s.start
			return LineChunk{Span: span, EndOfLine: false}, nil
		}

		n, err := s.r.Read(s.buf[s.end:])
		if n > 0 {
			s.end += n
		}
		if err != nil && n == 0 {
			if errors.Is(err, io.EOF) {
				return LineChunk{}, ErrStreamClosedByServer
			}
			return LineChunk{}, err
		}
	}
}

// findTerminator scans buf[from:end) for a line terminator and, if found,
// returns the resulting chunk and advances start/scanned past it.
func (s *LineScanner) findTerminator(from int) (LineChunk, bool) {
	for i := from; i < s.end; i++ {
		switch s.buf[i] {
		case '\n':
			span := NewByteSpan(s.buf, s.start, i-s.start)
			s.start = i + 1
			s.scanned = s.start
			return LineChunk{Span: span, EndOfLine: true}, true
		case '\r':
			if i+1 < s.end {
				term := i + 1
				if s.buf[i+1] == '\n' {
					term = i + 2
				}
				span := NewByteSpan(s.buf, s.start, i-s.start)
				s.start = term
				s.scanned = s.start
				return LineChunk{Span: span, EndOfLine: true}, true
			}
			// CR is the last buffered byte; defer the LF check to the next Read.
			span := NewByteSpan(s.buf, s.start, i-s.start)
			s.start = i + 1
			s.scanned = s.start
			s.lastWasCR = true
			return LineChunk{Span: span, EndOfLine: true}, true
		}
	}
	return LineChunk{}, false
}
