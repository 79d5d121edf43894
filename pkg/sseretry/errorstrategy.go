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

package sseretry

import (
	"time"

	"github.com/ivcap-works/gosse/pkg/sse"
)

// AlwaysThrow is an ErrorStrategy that never reconnects.
type AlwaysThrow struct{}

// HandleError implements sse.ErrorStrategy.
func (AlwaysThrow) HandleError(error) (sse.ErrorAction, sse.ErrorStrategy) {
	return sse.Throw, AlwaysThrow{}
}

// AlwaysContinue is an ErrorStrategy that reconnects unconditionally.
type AlwaysContinue struct{}

// HandleError implements sse.ErrorStrategy.
func (AlwaysContinue) HandleError(error) (sse.ErrorAction, sse.ErrorStrategy) {
	return sse.Continue, AlwaysContinue{}
}

// ContinueWithMaxAttempts continues for the first n errors it sees, then
// throws on the (n+1)th.
type ContinueWithMaxAttempts struct {
	Remaining int
}

// ContinueUpToAttempts returns a fresh ContinueWithMaxAttempts allowing n
// errors before giving up. The count is not reset by a successful
// connection.
func ContinueUpToAttempts(n int) ContinueWithMaxAttempts {
	return ContinueWithMaxAttempts{Remaining: n}
}

// HandleError implements sse.ErrorStrategy.
func (c ContinueWithMaxAttempts) HandleError(error) (sse.ErrorAction, sse.ErrorStrategy) {
	if c.Remaining <= 0 {
		return sse.Throw, c
	}
	return sse.Continue, ContinueWithMaxAttempts{Remaining: c.Remaining - 1}
}

// ContinueWithTimeLimit continues until Limit has elapsed since the first
// error it handled, then throws.
type ContinueWithTimeLimit struct {
	Limit       time.Duration
	deadline    time.Time
	hasDeadline bool
}

// ContinueForDuration returns a fresh ContinueWithTimeLimit that starts its
// clock on the first error it handles.
func ContinueForDuration(limit time.Duration) ContinueWithTimeLimit {
	return ContinueWithTimeLimit{Limit: limit}
}

// HandleError implements sse.ErrorStrategy.
func (c ContinueWithTimeLimit) HandleError(error) (sse.ErrorAction, sse.ErrorStrategy) {
	now := time.Now()
	if !c.hasDeadline {
		next := ContinueWithTimeLimit{Limit: c.Limit, deadline: now.Add(c.Limit), hasDeadline: true}
		return sse.Continue, next
	}
	if now.After(c.deadline) {
		return sse.Throw, c
	}
	return sse.Continue, c
}
