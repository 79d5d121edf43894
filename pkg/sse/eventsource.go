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
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConnectResult is what a ConnectStrategy hands back from a successful
// Connect call: a byte source to scan for SSE lines, plus a Closer that
// EventSource calls to unblock an in-flight read when it must abandon the
// connection (context cancellation, Restart, Close).
type ConnectResult struct {
	Reader io.Reader
	Closer io.Closer
	Origin string
	// ReadTimeout, if non-zero, overrides EventSourceOptions.ReadTimeout for
	// the lifetime of this connection: a negative value disables the
	// inactivity timeout entirely, a positive value replaces it. Used by
	// transports that already know their own idle-timeout budget (e.g. one
	// derived from a server-advertised keepalive interval).
	ReadTimeout time.Duration
}

// ConnectStrategy is the pluggable collaborator responsible for opening
// the underlying HTTP (or other transport) connection EventSource reads
// SSE lines from. Implementations must be safe to call repeatedly: a new
// EventSource connection attempt calls Connect again after every retry.
type ConnectStrategy interface {
	Connect(ctx context.Context, lastEventID string) (ConnectResult, error)
}

// RetryDelayStrategy computes successive reconnect delays. Implementations
// must be pure and immutable: Apply returns the delay to use now and the
// strategy value to use for the following attempt, never mutating the
// receiver. baseDelay is the EventSource's currently configured base
// delay, which a server-supplied "retry:" field may have overridden since
// the strategy was last applied; a strategy that has already computed a
// current base from a prior Apply call is free to ignore baseDelay.
type RetryDelayStrategy interface {
	Apply(baseDelay time.Duration) (delay time.Duration, next RetryDelayStrategy)
}

// ErrorStrategy decides, for an error encountered while connecting or
// reading, whether EventSource should give up (Throw) or reconnect
// (Continue).
type ErrorStrategy interface {
	HandleError(err error) (action ErrorAction, next ErrorStrategy)
}

// ErrorAction is the verdict an ErrorStrategy returns for a given error.
type ErrorAction int

const (
	Throw ErrorAction = iota
	Continue
)

// DefaultReadTimeout is the per-read inactivity timeout EventSource applies
// when EventSourceOptions.ReadTimeout is left at its zero value.
const DefaultReadTimeout = 5 * time.Minute

// EventSourceOptions configures an EventSource.
type EventSourceOptions struct {
	ConnectStrategy    ConnectStrategy
	RetryDelayStrategy RetryDelayStrategy
	ErrorStrategy      ErrorStrategy
	StreamEventData    bool
	ExpectFields       map[string]bool
	// ReadTimeout is the per-read inactivity timeout. Zero selects
	// DefaultReadTimeout; a negative value disables the timeout (infinite).
	// A ConnectResult.ReadTimeout hint from the active ConnectStrategy
	// overrides this for the life of that connection.
	ReadTimeout         time.Duration
	LineScannerCapacity int
	Logger              *zap.Logger

	// InitialRetryDelay is the base delay handed to RetryDelayStrategy.Apply
	// on every reconnect attempt until a server "retry:" field overrides it.
	InitialRetryDelay time.Duration
	// InitialLastEventID seeds the Last-Event-ID sent on the very first
	// connect attempt, before any id: field has been observed.
	InitialLastEventID string
	// BackoffResetThreshold is how long a connection must stay open before
	// a subsequent failure resets the retry strategy back to its initial
	// state rather than continuing to back off from where it left off.
	BackoffResetThreshold time.Duration
	// OnWaiting, if set, is called synchronously from the reading
	// goroutine with the computed reconnect delay just before the
	// Connecting-state sleep begins.
	OnWaiting func(delay time.Duration)
}

// EventSource is a reconnecting SSE client: it owns a ConnectStrategy, a
// RetryDelayStrategy and an ErrorStrategy, and drives the state machine in
// §4.5 of the design (Raw -> Connecting -> Open -> Closed -> Connecting...
// -> Shutdown). All of EventSource's state is owned by a single goroutine,
// the one calling ReadAnyEvent/ReadMessage; Close and Restart may be
// called from any goroutine and communicate with it through mutex-guarded
// fields, the closed channel, and the current connection's Closer.
type EventSource struct {
	opts   EventSourceOptions
	logger *zap.Logger

	mu    sync.Mutex
	state ReadyState

	lastEventID    string
	retryDelay     RetryDelayStrategy
	baseRetryDelay time.Duration
	errStrategy    ErrorStrategy

	parser      *EventParser
	conn        ConnectResult
	haveConn    bool
	openedAt    time.Time
	readTimeout time.Duration

	restartRequested      bool
	resetBackoffOnRestart bool

	// pendingEvent holds a synthetic event queued for the very next
	// ReadAnyEvent call; see that method's doc comment. Touched only from
	// the single goroutine that calls ReadAnyEvent, so it needs no lock.
	pendingEvent Event

	closeOnce sync.Once
	closed    chan struct{}
	fatalErr  error
}

// NewEventSource builds an EventSource from opts. ConnectStrategy must be
// non-nil. RetryDelayStrategy and ErrorStrategy have no package-level
// default: a nil RetryDelayStrategy reconnects with no delay, and a nil
// ErrorStrategy treats every error as Throw. Callers needing a resilient
// default should wire pkg/sseretry's AlwaysContinue and ExponentialBackoff
// explicitly, the way cmd/ssecat does.
func NewEventSource(opts EventSourceOptions) (*EventSource, error) {
	if opts.ConnectStrategy == nil {
		return nil, &ConfigurationError{Msg: "ConnectStrategy is required"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case opts.ReadTimeout == 0:
		opts.ReadTimeout = DefaultReadTimeout
	case opts.ReadTimeout < 0:
		opts.ReadTimeout = 0
	}
	es := &EventSource{
		opts:           opts,
		logger:         logger,
		state:          StateRaw,
		retryDelay:     opts.RetryDelayStrategy,
		baseRetryDelay: opts.InitialRetryDelay,
		errStrategy:    opts.ErrorStrategy,
		lastEventID:    opts.InitialLastEventID,
		closed:         make(chan struct{}),
	}
	return es, nil
}

// State returns the current lifecycle state.
func (es *EventSource) State() ReadyState {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.state
}

// LastEventID returns the most recently observed id: value, which is sent
// back on the next (re)connect attempt as Last-Event-ID.
func (es *EventSource) LastEventID() string {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.lastEventID
}

// Restart forces the current connection, if any, to be abandoned and a
// new one opened. If resetBackoff is true the retry strategy is restored
// to its initial configuration instead of continuing from wherever it
// left off.
func (es *EventSource) Restart(resetBackoff bool) {
	es.mu.Lock()
	es.restartRequested = true
	es.resetBackoffOnRestart = resetBackoff
	conn := es.conn
	haveConn := es.haveConn
	es.mu.Unlock()
	if haveConn && conn.Closer != nil {
		_ = conn.Closer.Close()
	}
}

// Close shuts the EventSource down permanently. Any blocked read is
// unblocked and subsequent ReadAnyEvent/ReadMessage calls return
// ErrStreamClosedByCaller. Calling Close twice is a no-op on the second
// call.
func (es *EventSource) Close() {
	es.shutdown(ErrStreamClosedByCaller)
}

// shutdown is the terminal transition shared by Close (caller-initiated)
// and a Throw verdict from either strategy (§4.5's "→Shutdown, fail" and
// "→Shutdown" table cells): it moves ready_state to Shutdown exactly once,
// unblocks any in-flight sleep, and disposes the current connection's
// Closer. err is recorded so a ReadAnyEvent call racing with — or arriving
// after — the transition observes the same failure instead of silently
// trying to reconnect.
func (es *EventSource) shutdown(err error) {
	es.closeOnce.Do(func() {
		es.mu.Lock()
		es.state = StateShutdown
		es.fatalErr = err
		conn := es.conn
		haveConn := es.haveConn
		es.mu.Unlock()
		close(es.closed)
		if haveConn && conn.Closer != nil {
			_ = conn.Closer.Close()
		}
	})
}

func (es *EventSource) isShutdown() bool {
	select {
	case <-es.closed:
		return true
	default:
		return false
	}
}

// shutdownErr returns the error recorded by shutdown, defaulting to
// ErrStreamClosedByCaller if shutdown raced Close and a Throw verdict and
// Close won.
func (es *EventSource) shutdownErr() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.fatalErr != nil {
		return es.fatalErr
	}
	return ErrStreamClosedByCaller
}

// ReadAnyEvent advances the state machine and returns the next event of
// any kind: StartedEvent and ClosedEvent mark connection lifecycle
// transitions, CommentEvent/SetRetryDelayEvent/*Message carry parsed
// stream content, and *FaultedEvent reports an error the ErrorStrategy
// chose to continue past. It returns a non-nil error when the
// ErrorStrategy chooses Throw or the caller closes the source; once that
// happens the source is Shutdown for good and every subsequent call
// returns the same terminal error. A cancelled or expired ctx also ends
// the call with ctx's error, but leaves the source usable: a later call
// connects again.
func (es *EventSource) ReadAnyEvent(ctx context.Context) (Event, error) {
	for {
		// A connect or read failure that the ErrorStrategy continues past
		// emits two events in sequence (§4.5 steps 3 and 7: "emit
		// Faulted{err} + Closed{}"), but a single ReadAnyEvent call can
		// only hand back one. onConnectError/onReadError return the
		// Faulted immediately and leave the Closed queued here so the very
		// next call delivers it before anything else, including Shutdown.
		if ev := es.pendingEvent; ev != nil {
			es.pendingEvent = nil
			return ev, nil
		}

		if es.isShutdown() {
			return nil, es.shutdownErr()
		}

		es.mu.Lock()
		haveConn := es.haveConn
		st := es.state
		es.mu.Unlock()

		if !haveConn {
			if st == StateClosed {
				// Per §4.5 step 2 and §3's definition of Connecting as "the
				// interval between retries," ready_state must already read
				// Connecting for the whole backoff wait, not just once the
				// wait is over and the connect attempt itself begins.
				es.mu.Lock()
				es.state = StateConnecting
				es.mu.Unlock()
				delay, next := es.currentRetryDelay()
				if next != nil {
					// A nil successor means "keep using this strategy".
					es.setRetryDelay(next)
				}
				es.logger.Debug("sse: waiting before reconnect", zap.Duration("delay", delay))
				if es.opts.OnWaiting != nil {
					es.opts.OnWaiting(delay)
				}
				if err := es.sleep(ctx, delay); err != nil {
					return nil, err
				}
			}
			ev, err := es.connect(ctx)
			if err != nil {
				return nil, err
			}
			if ev != nil {
				return ev, nil
			}
			continue
		}

		ev, err := es.readWithTimeout(ctx)
		if err != nil {
			return es.onReadError(err)
		}
		if fe, ok := ev.(SetRetryDelayEvent); ok {
			es.applyServerRetryDelay(fe.Delay)
			es.maybeResetBackoffOnLongLivedConn()
		}
		if msg, ok := ev.(*Message); ok && msg.LastEventID != "" {
			es.mu.Lock()
			es.lastEventID = msg.LastEventID
			es.mu.Unlock()
		}
		return ev, nil
	}
}

// ReadMessage is ReadAnyEvent filtered down to *Message events; it
// transparently consumes and re-loops past CommentEvent,
// SetRetryDelayEvent, StartedEvent, ClosedEvent and *FaultedEvent.
func (es *EventSource) ReadMessage(ctx context.Context) (*Message, error) {
	for {
		ev, err := es.ReadAnyEvent(ctx)
		if err != nil {
			return nil, err
		}
		if msg, ok := ev.(*Message); ok {
			return msg, nil
		}
	}
}

func (es *EventSource) connect(ctx context.Context) (Event, error) {
	es.mu.Lock()
	es.state = StateConnecting
	lastID := es.lastEventID
	restart := es.restartRequested
	es.restartRequested = false
	if restart && es.resetBackoffOnRestart {
		es.retryDelay = es.opts.RetryDelayStrategy
		es.baseRetryDelay = es.opts.InitialRetryDelay
		es.resetBackoffOnRestart = false
	}
	es.mu.Unlock()

	es.logger.Debug("sse: connecting", zap.String("last_event_id", lastID))
	res, err := es.opts.ConnectStrategy.Connect(ctx, lastID)
	if err != nil {
		return es.onConnectError(err)
	}

	scanner := NewLineScanner(res.Reader, es.opts.LineScannerCapacity)
	parser := NewEventParser(scanner, ParserOptions{
		StreamEventData: es.opts.StreamEventData,
		ExpectFields:    es.opts.ExpectFields,
		Origin:          res.Origin,
	})

	timeout := es.opts.ReadTimeout
	if res.ReadTimeout != 0 {
		if res.ReadTimeout < 0 {
			timeout = 0
		} else {
			timeout = res.ReadTimeout
		}
	}

	es.mu.Lock()
	es.conn = res
	es.haveConn = true
	es.parser = parser
	es.state = StateOpen
	es.openedAt = time.Now()
	es.readTimeout = timeout
	es.mu.Unlock()

	es.logger.Info("sse: connection opened", zap.String("origin", res.Origin))
	return StartedEvent{}, nil
}

// readResult carries one EventParser.NextEvent outcome across the goroutine
// boundary readWithTimeout introduces.
type readResult struct {
	ev  Event
	err error
}

// readWithTimeout wraps one EventParser.NextEvent call in the connection's
// inactivity timeout, per §4.5 step 5 and §5's "inactivity timeout"
// suspension point. Most underlying readers (plain TCP/TLS conns behind an
// io.Reader) do not honor context cancellation on a read already in flight,
// so a timeout cannot simply cancel a context around the call: instead the
// read runs in its own goroutine and the timeout races it on a channel,
// exactly the "cancellable wrapper around uncancellable I/O" pattern from
// §9 — on timeout the in-flight read is detached and its eventual result
// (or lack of one) is discarded once the caller tears the connection down
// and its Closer unblocks the stuck Read.
func (es *EventSource) readWithTimeout(ctx context.Context) (Event, error) {
	es.mu.Lock()
	timeout := es.readTimeout
	es.mu.Unlock()
	if timeout <= 0 {
		return es.parser.NextEvent(ctx)
	}

	done := make(chan readResult, 1)
	go func() {
		ev, err := es.parser.NextEvent(ctx)
		done <- readResult{ev, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.ev, r.err
	case <-timer.C:
		return nil, &ReadTimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (es *EventSource) onConnectError(err error) (Event, error) {
	action, next := es.handleError(err)
	if action == Throw {
		es.logger.Warn("sse: connect failed, giving up", zap.Error(err))
		es.shutdown(err)
		return nil, err
	}
	es.setErrorStrategy(next)
	es.mu.Lock()
	es.state = StateClosed
	es.mu.Unlock()
	es.logger.Warn("sse: connect failed, will retry", zap.Error(err))
	es.pendingEvent = ClosedEvent{}
	return &FaultedEvent{Err: err}, nil
}

func (es *EventSource) onReadError(err error) (Event, error) {
	es.teardownConn()

	// A cancelled or expired caller ctx (not this connection's own inactivity
	// timeout, which readWithTimeout reports as *ReadTimeoutError instead)
	// aborts the call immediately rather than going through ErrorStrategy.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if es.isShutdown() {
		return nil, es.shutdownErr()
	}

	action, next := es.handleError(err)
	es.maybeResetBackoffOnLongLivedConn()
	if action == Throw {
		es.logger.Warn("sse: read failed, giving up", zap.Error(err))
		es.shutdown(err)
		return nil, err
	}
	es.setErrorStrategy(next)
	es.mu.Lock()
	es.state = StateClosed
	es.mu.Unlock()
	es.logger.Warn("sse: read failed, will retry", zap.Error(err))
	es.pendingEvent = ClosedEvent{}
	return &FaultedEvent{Err: err}, nil
}

func (es *EventSource) teardownConn() {
	es.mu.Lock()
	conn := es.conn
	haveConn := es.haveConn
	es.haveConn = false
	es.parser = nil
	es.conn = ConnectResult{}
	es.mu.Unlock()
	if haveConn && conn.Closer != nil {
		_ = conn.Closer.Close()
	}
}

func (es *EventSource) maybeResetBackoffOnLongLivedConn() {
	if es.opts.BackoffResetThreshold <= 0 {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	if !es.openedAt.IsZero() && time.Since(es.openedAt) >= es.opts.BackoffResetThreshold {
		es.retryDelay = es.opts.RetryDelayStrategy
		es.baseRetryDelay = es.opts.InitialRetryDelay
	}
}

func (es *EventSource) currentRetryDelay() (time.Duration, RetryDelayStrategy) {
	es.mu.Lock()
	strategy := es.retryDelay
	base := es.baseRetryDelay
	es.mu.Unlock()
	if strategy == nil {
		return 0, nil
	}
	return strategy.Apply(base)
}

func (es *EventSource) setRetryDelay(next RetryDelayStrategy) {
	es.mu.Lock()
	es.retryDelay = next
	es.mu.Unlock()
}

// applyServerRetryDelay implements step 6 of the connect loop: a
// SetRetryDelay event updates the base delay handed to the strategy on
// every subsequent reconnect attempt.
func (es *EventSource) applyServerRetryDelay(d time.Duration) {
	es.mu.Lock()
	es.baseRetryDelay = d
	es.mu.Unlock()
}

// handleError applies the configured ErrorStrategy. An unset strategy
// defaults to AlwaysThrow, per the configuration surface's documented
// default.
func (es *EventSource) handleError(err error) (ErrorAction, ErrorStrategy) {
	es.mu.Lock()
	strategy := es.errStrategy
	es.mu.Unlock()
	if strategy == nil {
		return Throw, nil
	}
	return strategy.HandleError(err)
}

func (es *EventSource) setErrorStrategy(next ErrorStrategy) {
	es.mu.Lock()
	es.errStrategy = next
	es.mu.Unlock()
}

func (es *EventSource) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-es.closed:
		return ErrStreamClosedByCaller
	}
}
