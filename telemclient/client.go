// Package telemclient reads the relay's telemetry feed over a WebSocket and
// hands every JSON message to a Sink, reconnecting with exponential backoff
// when the connection drops.
package telemclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaonanln/dtnview/dashboard"
	"github.com/xiaonanln/dtnview/util/backoff"
	"github.com/xiaonanln/dtnview/util/logger"
	"github.com/xiaonanln/dtnview/util/metrics"
)

var log = logger.NewLogger("telemclient")

// greeting is sent by the relay's telemetry server right after the upgrade.
const greeting = "Hello websocket"

const (
	DefaultInitialBackoff   = time.Second
	DefaultMaxBackoff       = time.Minute
	DefaultMultiplier       = 2.0
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadLimit        = 4 << 20
)

// Sink consumes decoded telemetry. *dashboard.Dashboard implements it.
type Sink interface {
	ApplyJSON(data []byte) (dashboard.Update, error)
}

// Config configures a Client.
type Config struct {
	// URL is the relay's telemetry endpoint, e.g. ws://relay:8086/websocket.
	URL              string
	Header           http.Header
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	Multiplier       float64
	HandshakeTimeout time.Duration
	ReadLimit        int64
}

func (c *Config) applyDefaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = DefaultReadLimit
	}
}

// Stats counts what the client has seen since it was created.
type Stats struct {
	Connects int64
	Messages int64
	Rejected int64
}

// Client is a reconnecting telemetry feed reader.
type Client struct {
	cfg    Config
	sink   Sink
	dialer *websocket.Dialer

	connects atomic.Int64
	messages atomic.Int64
	rejected atomic.Int64
}

// New creates a Client. Run starts it.
func New(cfg Config, sink Sink) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("telemetry url is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("telemetry sink is required")
	}
	cfg.applyDefaults()
	return &Client{
		cfg:  cfg,
		sink: sink,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}, nil
}

// Stats returns the client's counters.
func (c *Client) Stats() Stats {
	return Stats{
		Connects: c.connects.Load(),
		Messages: c.messages.Load(),
		Rejected: c.rejected.Load(),
	}
}

// Run connects and reads until ctx is done, reconnecting after every
// failure. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	b := backoff.New(c.cfg.InitialBackoff, c.cfg.MaxBackoff, c.cfg.Multiplier)
	first := true

	for {
		if !first {
			metrics.RecordTelemetryReconnect()
			log.Infof("Reconnecting to %s in %v", c.cfg.URL, b.CurrentDelay())
			if err := b.Wait(ctx); err != nil {
				return err
			}
		}
		first = false

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warnf("Failed to connect to %s: %v", c.cfg.URL, err)
			continue
		}
		b.Reset()

		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("Telemetry connection to %s lost: %v", c.cfg.URL, err)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial telemetry feed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial telemetry feed: %w", err)
	}
	conn.SetReadLimit(c.cfg.ReadLimit)
	c.connects.Add(1)
	log.Infof("Connected to telemetry feed %s", c.cfg.URL)
	return conn, nil
}

// serve reads messages until the connection fails or ctx is done.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	metrics.SetTelemetryConnected(true)
	defer metrics.SetTelemetryConnected(false)

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer func() {
		if stop() {
			conn.Close()
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("closed by relay: %w", err)
			}
			return fmt.Errorf("failed to read telemetry message: %w", err)
		}
		if msgType != websocket.TextMessage {
			log.Debugf("Ignoring binary telemetry frame of %d bytes", len(data))
			continue
		}
		if string(data) == greeting {
			log.Debugf("Telemetry feed greeting received")
			continue
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	c.messages.Add(1)
	if _, err := c.sink.ApplyJSON(data); err != nil {
		c.rejected.Add(1)
		if errors.Is(err, dashboard.ErrMalformedRecord) || errors.Is(err, dashboard.ErrNotConfigured) {
			// already logged by the dashboard
			return
		}
		log.Errorf("Failed to apply telemetry message: %v", err)
	}
}
