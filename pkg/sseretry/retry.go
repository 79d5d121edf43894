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

// Package sseretry provides reconnect backoff and error-continuation
// policies for an sse.EventSource.
package sseretry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ivcap-works/gosse/pkg/sse"
)

const (
	defaultMultiplier = 2.0
	defaultJitter     = 0.5
	defaultMaxDelay   = 30 * time.Second
)

// ExponentialBackoff is sse.EventSource's default RetryDelayStrategy. It is
// immutable: Apply never mutates the receiver, returning a new value that
// carries the computed base delay forward to the following attempt.
//
// The jittered delay itself comes from a fresh
// github.com/cenkalti/backoff/v4.ExponentialBackOff built on every Apply
// call and driven through exactly one NextBackOff(): that type is
// stateful and mutates itself on every call, so rebuilding it each time
// rather than holding one across calls is what keeps this strategy's own
// Apply pure. Multiplier and Jitter feed backoff.ExponentialBackOff's
// Multiplier and RandomizationFactor fields directly.
type ExponentialBackoff struct {
	// Multiplier scales the previous base delay on each reconnect. Zero is
	// treated as 1. Defaults to 2.0.
	Multiplier float64
	// Jitter is backoff.ExponentialBackOff's RandomizationFactor: the
	// fraction of the current base delay randomized in either direction on
	// each Apply. Defaults to 0.5.
	Jitter float64
	// MaxDelay caps the computed base delay. Zero means unbounded.
	MaxDelay time.Duration

	lastBase time.Duration
	haveBase bool
}

// NewExponentialBackoff returns the default backoff strategy.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Multiplier: defaultMultiplier,
		Jitter:     defaultJitter,
		MaxDelay:   defaultMaxDelay,
	}
}

// Apply implements sse.RetryDelayStrategy.
func (b *ExponentialBackoff) Apply(baseDelay time.Duration) (time.Duration, sse.RetryDelayStrategy) {
	mult := b.Multiplier
	if mult == 0 {
		mult = 1
	}

	currentBase := baseDelay
	if b.haveBase {
		currentBase = time.Duration(float64(b.lastBase) * mult)
	}
	if b.MaxDelay > 0 && currentBase > b.MaxDelay {
		currentBase = b.MaxDelay
	}

	actual := currentBase
	if currentBase > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = currentBase
		bo.Multiplier = mult
		bo.RandomizationFactor = b.Jitter
		// NewExponentialBackOff already called Reset() against its own
		// default InitialInterval; Reset again so currentInterval picks up
		// the value just set above instead of the stale default.
		bo.Reset()
		actual = bo.NextBackOff()
	}

	next := &ExponentialBackoff{
		Multiplier: b.Multiplier,
		Jitter:     b.Jitter,
		MaxDelay:   b.MaxDelay,
		lastBase:   currentBase,
		haveBase:   true,
	}
	return actual, next
}

// FixedDelay is a RetryDelayStrategy that always returns the same delay,
// ignoring baseDelay entirely. Useful for tests and for callers who want
// to disable jitter/backoff altogether.
type FixedDelay struct {
	Delay time.Duration
}

// Apply implements sse.RetryDelayStrategy.
func (f FixedDelay) Apply(time.Duration) (time.Duration, sse.RetryDelayStrategy) {
	return f.Delay, f
}

// backoffClockStrategy adapts a cenkalti/backoff/v4.BackOff into an
// sse.RetryDelayStrategy for callers who want that library's curve
// (e.g. a previously tuned backoff.ExponentialBackOff) instead of the
// built-in ExponentialBackoff. Because backoff.BackOff is stateful, each
// Apply builds a fresh BackOff from the factory and replays it rather than
// sharing mutable state across strategy values, preserving immutability.
type backoffClockStrategy struct {
	newBackOff func() backoff.BackOff
	calls      int
}

// FromBackOff adapts a factory for a cenkalti/backoff/v4.BackOff into an
// sse.RetryDelayStrategy. newBackOff is called on every Apply and the
// returned BackOff is driven forward by replaying NextBackOff calls equal
// to the number of reconnect attempts so far, which keeps each Apply call
// pure with respect to the returned strategy value.
func FromBackOff(newBackOff func() backoff.BackOff) sse.RetryDelayStrategy {
	return &backoffClockStrategy{newBackOff: newBackOff}
}

// Apply implements sse.RetryDelayStrategy.
func (s *backoffClockStrategy) Apply(baseDelay time.Duration) (time.Duration, sse.RetryDelayStrategy) {
	bo := s.newBackOff()
	var d time.Duration
	for i := 0; i <= s.calls; i++ {
		d = bo.NextBackOff()
	}
	if d == backoff.Stop {
		d = baseDelay
	}
	return d, &backoffClockStrategy{newBackOff: s.newBackOff, calls: s.calls + 1}
}
