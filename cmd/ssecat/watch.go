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

package ssecat

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/araddon/dateparse"
	ansi "github.com/k0kubun/go-ansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivcap-works/gosse/pkg/sse"
	"github.com/ivcap-works/gosse/pkg/sseconfig"
	"github.com/ivcap-works/gosse/pkg/sseconnect"
	"github.com/ivcap-works/gosse/pkg/sseretry"
)

var (
	since           string
	streamEventData bool
	expectEvent     bool
	expectID        bool
	initialRetryDur time.Duration
	maxRetryDur     time.Duration
	lastEventIDFlag string
	readTimeoutDur  time.Duration
	lineBufferBytes int
)

var watchCmd = &cobra.Command{
	Use:   "watch <url>",
	Short: "Connect to an SSE endpoint and print every message received",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&since, "since", "", "replay messages from this point on, if the server supports it (any common date/time format)")
	watchCmd.Flags().BoolVar(&streamEventData, "stream-data", false, "deliver data as an incremental reader instead of buffering it")
	watchCmd.Flags().BoolVar(&expectEvent, "expect-event-field", false, "require an event: field before data: is eligible for streaming mode")
	watchCmd.Flags().BoolVar(&expectID, "expect-id-field", false, "require an id: field before data: is eligible for streaming mode")
	watchCmd.Flags().DurationVar(&initialRetryDur, "initial-retry", time.Second, "base delay before the first reconnect attempt")
	watchCmd.Flags().DurationVar(&maxRetryDur, "max-retry", 30*time.Second, "upper bound on the reconnect delay")
	watchCmd.Flags().StringVar(&lastEventIDFlag, "last-event-id", "", "Last-Event-ID to send on the very first connect")
	watchCmd.Flags().DurationVar(&readTimeoutDur, "read-timeout", sse.DefaultReadTimeout, "inactivity timeout per read; 0 disables it")
	watchCmd.Flags().IntVar(&lineBufferBytes, "line-buffer", 0, "line scanner buffer size in bytes; longer lines are read in pieces (0 = library default)")
}

type watchStats struct {
	messages int
	comments int
	faults   int
	started  time.Time
}

func runWatch(cmd *cobra.Command, args []string) error {
	url, err := buildWatchURL(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	expect := map[string]bool{}
	if expectEvent {
		expect["event"] = true
	}
	if expectID {
		expect["id"] = true
	}

	connect := &sseconnect.HTTPConnect{
		URL:    url,
		Header: http.Header{},
		Logger: logger,
	}
	if tok := resolveAccessToken(); tok != "" {
		connect.TokenSource = sseconnect.StaticToken(tok)
	}

	backoff := sseretry.NewExponentialBackoff()
	backoff.MaxDelay = maxRetryDur

	readTimeout := readTimeoutDur
	if readTimeout == 0 {
		readTimeout = -1 // explicit --read-timeout=0 disables the inactivity timeout
	}

	lineCapacity := lineBufferBytes
	if lineCapacity <= 0 {
		lineCapacity = sse.DefaultLineScannerCapacity
	}
	if debug {
		logger.Debug("line scanner buffer", zap.String("capacity", sseconfig.FormatBytes(int64(lineCapacity))))
	}

	es, err := sse.NewEventSource(sse.EventSourceOptions{
		ConnectStrategy:       connect,
		RetryDelayStrategy:    backoff,
		ErrorStrategy:         sseretry.AlwaysContinue{},
		StreamEventData:       streamEventData,
		ExpectFields:          expect,
		InitialRetryDelay:     initialRetryDur,
		InitialLastEventID:    lastEventIDFlag,
		BackoffResetThreshold: 60 * time.Second,
		ReadTimeout:           readTimeout,
		LineScannerCapacity:   lineCapacity,
		Logger:                logger,
		OnWaiting:             onReconnectWait,
	})
	if err != nil {
		return err
	}
	defer es.Close()

	stats := &watchStats{started: time.Now()}
	defer printWatchSummary(stats)

	// --timeout bounds only the wait for the first StartedEvent; once
	// connected, reconnects are governed by --read-timeout/--max-retry
	// instead, so the deadline context is dropped as soon as it fires.
	connectCtx := ctx
	var cancelConnect context.CancelFunc
	if timeoutSec > 0 {
		connectCtx, cancelConnect = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancelConnect()
	}
	connected := false

	for {
		readCtx := ctx
		if !connected {
			readCtx = connectCtx
		}
		ev, err := es.ReadAnyEvent(readCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !connected && connectCtx.Err() != nil {
				return fmt.Errorf("ssecat: timed out waiting %ds for the initial connection", timeoutSec)
			}
			return fmt.Errorf("ssecat: %w", err)
		}
		if _, ok := ev.(sse.StartedEvent); ok && !connected {
			connected = true
			if cancelConnect != nil {
				cancelConnect()
			}
		}
		handleWatchEvent(ev, stats)
	}
}

func handleWatchEvent(ev sse.Event, stats *watchStats) {
	switch e := ev.(type) {
	case sse.StartedEvent:
		if !silent {
			fmt.Fprintln(os.Stderr, "connected")
		}
	case sse.ClosedEvent:
		if !silent {
			fmt.Fprintln(os.Stderr, "connection closed, reconnecting...")
		}
	case *sse.FaultedEvent:
		stats.faults++
		fmt.Fprintf(os.Stderr, "error: %v\n", e.Err)
	case sse.CommentEvent:
		stats.comments++
		if debug {
			fmt.Fprintf(os.Stderr, "comment: %s\n", e.Text)
		}
	case sse.SetRetryDelayEvent:
		if debug {
			fmt.Fprintf(os.Stderr, "server set retry delay to %s\n", sseconfig.FormatDuration(e.Delay))
		}
	case *sse.Message:
		stats.messages++
		printMessage(e)
	}
}

func printMessage(msg *sse.Message) {
	data, err := msg.ReadFully()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading message %s: %v\n", msg.Name, err)
		return
	}
	if outputFormat == "json" || outputFormat == "yaml" {
		if err := sseconfig.RenderMessage(os.Stdout, data, outputFormat == "yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "error rendering message: %v\n", err)
		}
		return
	}
	fmt.Printf("[%s] %s\n", msg.Name, data)
}

func printWatchSummary(stats *watchStats) {
	if silent {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stderr)
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRow(table.Row{"messages", stats.messages})
	t.AppendRow(table.Row{"comments", stats.comments})
	t.AppendRow(table.Row{"faults", stats.faults})
	t.AppendRow(table.Row{"duration", time.Since(stats.started).Round(time.Second)})
	t.Render()
}

func buildWatchURL(raw string) (string, error) {
	if since == "" {
		return raw, nil
	}
	t, err := dateparse.ParseLocal(since)
	if err != nil {
		return "", fmt.Errorf("ssecat: invalid --since value %q: %w", since, err)
	}
	u, err := neturl.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("ssecat: invalid url %q: %w", raw, err)
	}
	q := u.Query()
	q.Set("since", strconv.FormatInt(t.Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// onReconnectWait is EventSource's OnWaiting hook: it is called
// synchronously from the reading goroutine right before EventSource
// itself sleeps for delay, so it must return immediately. It animates a
// countdown bar on os.Stderr in its own goroutine for the duration of that
// sleep, counting milliseconds instead of bytes.
func onReconnectWait(delay time.Duration) {
	if silent || delay <= 0 {
		return
	}
	go func() {
		bar := progressbar.NewOptions64(
			delay.Milliseconds(),
			progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
			progressbar.OptionSetDescription("reconnecting"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[yellow]=[reset]",
				SaucerHead:    "[yellow]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		const tick = 100 * time.Millisecond
		for elapsed := time.Duration(0); elapsed < delay; elapsed += tick {
			bar.Add64(tick.Milliseconds())
			time.Sleep(tick)
		}
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}()
}
