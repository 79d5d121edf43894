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
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	b := &ExponentialBackoff{Multiplier: 2, Jitter: 0, MaxDelay: 4 * time.Second}
	base := time.Second

	d1, next1 := b.Apply(base)
	if d1 != time.Second {
		t.Fatalf("first delay = %v, want 1s", d1)
	}
	nb1, ok := next1.(*ExponentialBackoff)
	if !ok {
		t.Fatalf("next is %T, want *ExponentialBackoff", next1)
	}

	d2, next2 := nb1.Apply(base)
	if d2 != 2*time.Second {
		t.Fatalf("second delay = %v, want 2s", d2)
	}
	nb2 := next2.(*ExponentialBackoff)

	d3, next3 := nb2.Apply(base)
	if d3 != 4*time.Second {
		t.Fatalf("third delay = %v, want 4s", d3)
	}
	nb3 := next3.(*ExponentialBackoff)

	// A fourth Apply would compute 8s uncapped; MaxDelay must clamp it.
	d4, _ := nb3.Apply(base)
	if d4 != 4*time.Second {
		t.Fatalf("fourth delay = %v, want capped at 4s", d4)
	}
}

func TestExponentialBackoffIsImmutable(t *testing.T) {
	b := &ExponentialBackoff{Multiplier: 2, Jitter: 0}
	before := *b
	if _, _ = b.Apply(time.Second); *b != before {
		t.Fatalf("Apply mutated the receiver: before=%+v after=%+v", before, *b)
	}
}

func TestExponentialBackoffJitterStaysWithinRandomizationFactor(t *testing.T) {
	// backoff.ExponentialBackOff.NextBackOff() randomizes symmetrically:
	// currentInterval +/- RandomizationFactor*currentInterval.
	b := &ExponentialBackoff{Multiplier: 1, Jitter: 0.5}
	const base = 10 * time.Millisecond
	lo, hi := base/2, base+base/2
	for i := 0; i < 50; i++ {
		d, next := b.Apply(base)
		if d < lo || d > hi {
			t.Fatalf("jittered delay %v out of [%v, %v] range", d, lo, hi)
		}
		b = next.(*ExponentialBackoff)
	}
}

func TestExponentialBackoffZeroMultiplierTreatedAsOne(t *testing.T) {
	b := &ExponentialBackoff{Multiplier: 0, Jitter: 0}
	d1, next := b.Apply(time.Second)
	if d1 != time.Second {
		t.Fatalf("first delay = %v, want 1s", d1)
	}
	d2, _ := next.(*ExponentialBackoff).Apply(time.Second)
	if d2 != time.Second {
		t.Fatalf("second delay = %v, want 1s (multiplier of 0 should behave as 1, not freeze at 0)", d2)
	}
}

func TestFixedDelayIgnoresBaseAndRepeats(t *testing.T) {
	f := FixedDelay{Delay: 250 * time.Millisecond}
	d, next := f.Apply(time.Hour)
	if d != 250*time.Millisecond {
		t.Fatalf("delay = %v, want 250ms", d)
	}
	if next != f {
		t.Fatalf("FixedDelay.Apply should return itself as the next strategy")
	}
}

func TestFromBackOffReplaysDeterministically(t *testing.T) {
	newBO := func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 10 * time.Millisecond
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxInterval = time.Second
		// NewExponentialBackOff reset itself against the default
		// InitialInterval; reset again so the 10ms set above takes effect.
		b.Reset()
		return b
	}
	strategy := FromBackOff(newBO)

	d1, next1 := strategy.Apply(0)
	d2, next2 := next1.Apply(0)
	d3, _ := next2.Apply(0)

	if d1 != 10*time.Millisecond {
		t.Fatalf("d1 = %v, want 10ms", d1)
	}
	if d2 != 20*time.Millisecond {
		t.Fatalf("d2 = %v, want 20ms", d2)
	}
	if d3 != 40*time.Millisecond {
		t.Fatalf("d3 = %v, want 40ms", d3)
	}

	// Re-applying from strategy (the original, unadvanced value) must
	// reproduce d1 again: Apply must not mutate the receiver's chain.
	d1Again, _ := strategy.Apply(0)
	if d1Again != d1 {
		t.Fatalf("re-applying the original strategy gave %v, want %v (not immutable)", d1Again, d1)
	}
}
