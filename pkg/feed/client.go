// Package feed subscribes to the relay's push channel and turns its frames into adsb events.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unklstewy/ads-bmap/pkg/adsb"
)

// ErrUnauthorized is returned when the relay rejects the configured token.
var ErrUnauthorized = errors.New("feed rejected credentials")

const (
	// maxFrameSize bounds a single inbound frame.
	maxFrameSize = 64 << 10

	// DefaultPongWait is how long a connection may stay silent. The relay pings
	// more often than this.
	DefaultPongWait = 60 * time.Second

	writeWait     = 10 * time.Second
	stableSession = 30 * time.Second
)

// Client is a reconnecting push channel subscriber.
type Client struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws
	URL string

	// Token, when set, is sent as a bearer token
	Token string

	// Codec decodes frames (default: JSON)
	Codec adsb.Codec

	// Retry governs reconnects (default: adsb.ReconnectConfig)
	Retry *adsb.RetryConfig

	// PongWait bounds the silence before the connection is dropped (default: DefaultPongWait)
	PongWait time.Duration

	Logger *slog.Logger

	dialer websocket.Dialer
}

// New creates a client for url using the named encoding ("json" or "msgpack").
func New(rawURL, token, encoding string, logger *slog.Logger) (*Client, error) {
	codec, err := adsb.CodecFor(encoding)
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	return &Client{URL: rawURL, Token: token, Codec: codec, Logger: logger}, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) pongWait() time.Duration {
	if c.PongWait <= 0 {
		return DefaultPongWait
	}
	return c.PongWait
}

func (c *Client) codec() adsb.Codec {
	if c.Codec == nil {
		return adsb.JSONCodec{}
	}
	return c.Codec
}

// endpoint adds the encoding parameter the relay uses to pick a codec.
func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("invalid feed url: %w", err)
	}
	if name := c.codec().Name(); name != "json" {
		q := u.Query()
		q.Set("encoding", name)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Run delivers events on out until ctx is cancelled. Each connection is announced
// with EventConnected and its loss with EventDisconnected. Reconnects back off
// exponentially; the backoff resets only after a connection delivered a frame or
// stayed up for stableSession, so a relay that accepts and drops is not hammered.
// Run returns ctx.Err() on cancellation, or ErrUnauthorized if the token is rejected.
func (c *Client) Run(ctx context.Context, out chan<- adsb.Event) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	cfg := adsb.ReconnectConfig()
	if c.Retry != nil {
		cfg = *c.Retry
	}
	log := c.logger().With("url", c.URL)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("feed connect failed", "attempt", attempt, "error", err, "retry_in", delay)
	}

	// drops counts consecutive sessions that ended before becoming stable
	drops := 0
	for {
		if drops > 0 {
			delay := cfg.Delay(drops - 1)
			log.Warn("feed dropped early, backing off", "drops", drops, "retry_in", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		conn, err := adsb.RetryWithBackoffResult(ctx, cfg, func() (*websocket.Conn, error) {
			return c.dial(ctx, endpoint)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}

		log.Info("feed connected")
		if !emit(ctx, out, adsb.Event{Kind: adsb.EventConnected}) {
			conn.Close()
			return ctx.Err()
		}

		start := time.Now()
		frames, readErr := c.read(ctx, conn, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if frames > 0 || time.Since(start) >= stableSession {
			drops = 0
		} else {
			drops++
		}

		log.Warn("feed disconnected", "error", readErr, "frames", frames)
		if !emit(ctx, out, adsb.Event{Kind: adsb.EventDisconnected, Err: readErr}) {
			return ctx.Err()
		}
	}
}

func (c *Client) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, adsb.Permanent(fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode))
		}
		return nil, fmt.Errorf("failed to dial feed: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// read decodes frames until the connection fails and returns how many arrived.
// Invalid frames are logged and skipped. The relay pings well within the pong wait, so a
// connection silent for longer than the pong wait is treated as dead.
func (c *Client) read(ctx context.Context, conn *websocket.Conn, out chan<- adsb.Event) (int, error) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	wait := c.pongWait()
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(wait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		var netErr net.Error
		if errors.Is(err, websocket.ErrCloseSent) || errors.As(err, &netErr) {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	codec := c.codec()
	log := c.logger()
	frames := 0
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return frames, err
		}
		frames++
		conn.SetReadDeadline(time.Now().Add(wait))

		ev, err := adsb.DecodeEvent(codec, frame)
		if err != nil {
			log.Warn("skipping feed frame", "error", err)
			continue
		}
		if !emit(ctx, out, ev) {
			return frames, ctx.Err()
		}
	}
}

func emit(ctx context.Context, out chan<- adsb.Event, ev adsb.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
