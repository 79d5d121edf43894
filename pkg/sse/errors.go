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
	"errors"
	"fmt"
	"time"
)

// ErrStreamClosedByServer indicates the underlying stream reached a clean
// EOF while a connection was open.
var ErrStreamClosedByServer = errors.New("sse: stream closed by server")

// ErrStreamClosedByCaller indicates the caller closed the source with
// EventSource.Close; an in-flight backoff sleep and every later read
// return it. A cancelled ctx is reported as ctx's own error instead.
var ErrStreamClosedByCaller = errors.New("sse: stream closed by caller")

// ErrStreamClosedWithIncompleteMessage indicates the underlying stream
// ended while a streaming data.Reader had not yet reached the blank line
// terminating its message.
var ErrStreamClosedWithIncompleteMessage = errors.New("sse: stream closed with incomplete message")

// ReadTimeoutError indicates the read timeout elapsed before EventSource
// parsed the next event. The timer runs once per event, not per underlying
// Read: bytes of a partly received event do not restart it.
type ReadTimeoutError struct {
	Timeout time.Duration
}

func (e *ReadTimeoutError) Error() string {
	return fmt.Sprintf("sse: read timed out after %s", e.Timeout)
}

// ContentError indicates a response whose content type or charset is
// incompatible with the SSE wire format.
type ContentError struct {
	ContentType string
	Encoding    string
}

func (e *ContentError) Error() string {
	if e.Encoding != "" {
		return fmt.Sprintf("sse: unsupported content type %q (encoding %q)", e.ContentType, e.Encoding)
	}
	return fmt.Sprintf("sse: unsupported content type %q", e.ContentType)
}

// HTTPError indicates a non-2xx (or 204) response to a connect attempt.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sse: unexpected http status %d", e.StatusCode)
}

// ConfigurationError indicates an illegal argument supplied at build time.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "sse: configuration: " + e.Msg
}
