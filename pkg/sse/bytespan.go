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

// ByteSpan is an offset/length view into a byte buffer it does not own.
// A zero-value ByteSpan represents an empty span. Bytes returned by Bytes
// alias the underlying buffer and are only valid until the LineScanner
// that produced them is read again; call Copy to retain them longer.
type ByteSpan struct {
	data   []byte
	offset int
	length int
}

// NewByteSpan returns a span over data[offset:offset+length].
func NewByteSpan(data []byte, offset, length int) ByteSpan {
	if length == 0 {
		return ByteSpan{}
	}
	return ByteSpan{data: data, offset: offset, length: length}
}

// Len returns the number of bytes in the span.
func (s ByteSpan) Len() int { return s.length }

// Empty reports whether the span has zero length.
func (s ByteSpan) Empty() bool { return s.length == 0 }

// Bytes returns the viewed region without copying it.
func (s ByteSpan) Bytes() []byte {
	if s.length == 0 {
		return nil
	}
	return s.data[s.offset : s.offset+s.length]
}

// Copy returns an owned copy of the viewed bytes.
func (s ByteSpan) Copy() []byte {
	if s.length == 0 {
		return nil
	}
	b := make([]byte, s.length)
	copy(b, s.Bytes())
	return b
}

// String returns a copy of the span's bytes as a string.
func (s ByteSpan) String() string {
	if s.length == 0 {
		return ""
	}
	return string(s.Bytes())
}
