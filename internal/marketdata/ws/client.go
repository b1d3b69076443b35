// Package ws is the streaming ingestion client. It keeps one subscription to
// a symbol's aggTrade stream alive across network failures and pushes every
// decoded trade into a TradeSink.
//
// Reconnect pacing is owned by Machine; the client only performs I/O and
// reports each transition to a StatusReporter.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"tickcandles-v1/internal/marketdata/feed"
	"tickcandles-v1/internal/model"
)

const maxLoggedPayload = 256

// Config holds configuration for the ingestion client.
type Config struct {
	// URL of the feed endpoint, e.g. "wss://fstream.asterdex.com/ws".
	URL    string
	Symbol string
	// Stream event name. Defaults to aggTrade.
	Stream string

	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	ErrorRetryDelay time.Duration
}

func (c *Config) defaults() {
	if c.Stream == "" {
		c.Stream = feed.EventAggTrade
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.ErrorRetryDelay <= 0 {
		c.ErrorRetryDelay = DefaultErrorRetryDelay
	}
}

// TradeSink receives decoded trades in arrival order.
type TradeSink interface {
	Push(t model.Trade)
}

// StatusReporter observes connection state transitions.
type StatusReporter interface {
	SetConnState(s model.ConnectionState)
}

// MultiStatus reports to every member in order.
type MultiStatus []StatusReporter

func (ms MultiStatus) SetConnState(s model.ConnectionState) {
	for _, r := range ms {
		r.SetConnState(s)
	}
}

// Client is the reconnecting feed subscriber.
type Client struct {
	cfg       Config
	stream    string
	transport Transport
	sink      TradeSink
	status    StatusReporter
	log       *slog.Logger

	subID int

	// Optional metrics hooks. Called from the Run goroutine.
	OnTrade      func(t model.Trade)
	OnMalformed  func()
	OnIgnored    func()
	OnReconnect  func()
	OnUnexpected func()
	OnBackoff    func(wait time.Duration)

	// sleep waits d or until ctx is done; false means ctx ended first.
	sleep func(ctx context.Context, d time.Duration) bool
}

// New creates a Client. status may be nil.
func New(cfg Config, transport Transport, sink TradeSink, status StatusReporter) (*Client, error) {
	cfg.defaults()
	if cfg.URL == "" {
		return nil, errors.New("ws: feed URL is required")
	}
	if cfg.Symbol == "" {
		return nil, errors.New("ws: symbol is required")
	}
	if transport == nil || sink == nil {
		return nil, errors.New("ws: transport and sink are required")
	}
	if status == nil {
		status = MultiStatus(nil)
	}
	stream := feed.StreamName(cfg.Symbol, cfg.Stream)
	return &Client{
		cfg:       cfg,
		stream:    stream,
		transport: transport,
		sink:      sink,
		status:    status,
		log:       slog.With("component", "ingest", "stream", stream),
		sleep:     sleepContext,
	}, nil
}

// Stream returns the subscribed stream name.
func (c *Client) Stream() string { return c.stream }

// Run connects, subscribes and reads until ctx is cancelled, reconnecting
// on every failure. It returns nil once ctx is done; no feed failure ends it.
func (c *Client) Run(ctx context.Context) error {
	m := NewMachine(c.cfg.InitialBackoff, c.cfg.MaxBackoff, c.cfg.ErrorRetryDelay)

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.status.SetConnState(model.Connecting())
		err := c.session(ctx, &m)
		if ctx.Err() != nil {
			c.log.Info("ingest stopped")
			return nil
		}

		var wait time.Duration
		switch Classify(err) {
		case FailureConnectivity:
			m, wait = m.Step(EventConnFailure)
			c.status.SetConnState(model.Disconnected(err, wait))
			c.log.Warn("feed disconnected", "error", err, "retry_in", wait, "next_backoff", m.Delay)
			if c.OnReconnect != nil {
				c.OnReconnect()
			}
		default:
			m, wait = m.Step(EventUnexpectedFailure)
			c.status.SetConnState(model.Errored(err))
			c.log.Error("feed error", "error", err, "retry_in", wait)
			if c.OnUnexpected != nil {
				c.OnUnexpected()
			}
		}
		if c.OnBackoff != nil {
			c.OnBackoff(wait)
		}

		if !c.sleep(ctx, wait) {
			c.log.Info("ingest stopped")
			return nil
		}
		m, _ = m.Step(EventRetry)
	}
}

// session makes one connection attempt and reads until it fails.
func (c *Client) session(ctx context.Context, m *Machine) error {
	conn, err := c.transport.Dial(ctx, c.cfg.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblocks ReadText when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	c.subID++
	frame, err := feed.SubscribeFrame(c.stream, c.subID)
	if err != nil {
		return err
	}
	if err := conn.WriteText(frame); err != nil {
		return errors.Wrap(err, "send subscribe")
	}

	*m, _ = m.Step(EventConnected)
	c.status.SetConnState(model.Connected(c.stream))
	c.log.Info("feed connected", "url", c.cfg.URL, "sub_id", c.subID)

	for {
		raw, err := conn.ReadText()
		if err != nil {
			return err
		}
		if err := c.handle(raw); err != nil {
			return err
		}
	}
}

// handle decodes one frame. Malformed and non-trade frames are skipped;
// only a fault inside handling itself ends the session.
func (c *Client) handle(raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic handling message: %v", r)
		}
	}()

	t, derr := feed.Decode(raw)
	switch {
	case derr == nil:
		c.sink.Push(t)
		if c.OnTrade != nil {
			c.OnTrade(t)
		}
	case errors.Is(derr, feed.ErrNotTrade):
		if derr != feed.ErrNotTrade {
			c.log.Warn("feed replied with error", "detail", derr)
		}
		if c.OnIgnored != nil {
			c.OnIgnored()
		}
	default:
		c.log.Debug("dropping malformed message", "error", derr, "raw", truncate(raw))
		if c.OnMalformed != nil {
			c.OnMalformed()
		}
	}
	return nil
}

func truncate(raw []byte) string {
	if len(raw) <= maxLoggedPayload {
		return string(raw)
	}
	return fmt.Sprintf("%s...(%d bytes)", raw[:maxLoggedPayload], len(raw))
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
