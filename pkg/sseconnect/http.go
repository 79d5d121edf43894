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

package sseconnect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ivcap-works/gosse/pkg/sse"
)

// BodyFactory builds the request body for a (re)connect attempt. It is
// called again on every reconnect, so implementations backed by a single
// io.Reader must return a fresh one each time.
type BodyFactory func(ctx context.Context) (io.Reader, error)

// HTTPConnect is the default sse.ConnectStrategy: it performs an HTTP
// request and treats a successful text/event-stream response body as the
// line source for an EventParser.
type HTTPConnect struct {
	// URL is the request target.
	URL string
	// Method defaults to GET.
	Method string
	// Header carries additional request headers; Accept and Cache-Control
	// are always set or overridden by HTTPConnect, and Last-Event-ID is set
	// whenever a non-empty id is known.
	Header http.Header
	// Body supplies the request body, if any.
	Body BodyFactory
	// Client performs the request; defaults to http.DefaultClient.
	Client *http.Client
	// TokenSource, if set, injects an Authorization: Bearer header.
	TokenSource TokenSource
	// Logger receives connect-attempt diagnostics; nil is silent.
	Logger *zap.Logger
}

// Connect implements sse.ConnectStrategy.
func (h *HTTPConnect) Connect(ctx context.Context, lastEventID string) (sse.ConnectResult, error) {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if h.Body != nil {
		b, err := h.Body(ctx)
		if err != nil {
			return sse.ConnectResult{}, fmt.Errorf("sseconnect: build request body: %w", err)
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, body)
	if err != nil {
		return sse.ConnectResult{}, fmt.Errorf("sseconnect: build request: %w", err)
	}
	if h.Header != nil {
		req.Header = h.Header.Clone()
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	if h.TokenSource != nil {
		tok, err := h.TokenSource.Token(ctx)
		if err != nil {
			return sse.ConnectResult{}, fmt.Errorf("sseconnect: token source: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	logger.Debug("sseconnect: connecting", zap.String("url", h.URL), zap.String("last_event_id", lastEventID))
	resp, err := client.Do(req)
	if err != nil {
		return sse.ConnectResult{}, fmt.Errorf("sseconnect: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return sse.ConnectResult{}, &sse.HTTPError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := readPreview(resp.Body, 1024)
		resp.Body.Close()
		logger.Warn("sseconnect: non-2xx response", zap.Int("status", resp.StatusCode), zap.ByteString("body", preview))
		return sse.ConnectResult{}, &sse.HTTPError{StatusCode: resp.StatusCode}
	}

	contentType, charset := parseContentType(resp.Header.Get("Content-Type"))
	if !strings.EqualFold(contentType, "text/event-stream") {
		resp.Body.Close()
		return sse.ConnectResult{}, &sse.ContentError{ContentType: contentType, Encoding: charset}
	}
	if charset != "" && !strings.EqualFold(charset, "utf-8") {
		resp.Body.Close()
		return sse.ConnectResult{}, &sse.ContentError{ContentType: contentType, Encoding: charset}
	}

	logger.Info("sseconnect: connected", zap.String("url", h.URL), zap.Int("status", resp.StatusCode))
	return sse.ConnectResult{
		Reader: resp.Body,
		Closer: resp.Body,
		Origin: h.URL,
	}, nil
}

func parseContentType(header string) (mediaType, charset string) {
	parts := strings.Split(header, ";")
	mediaType = strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if v, ok := strings.CutPrefix(p, "charset="); ok {
			charset = strings.Trim(v, `"`)
		}
	}
	return mediaType, charset
}

func readPreview(r io.Reader, max int64) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, max))
	return b
}
