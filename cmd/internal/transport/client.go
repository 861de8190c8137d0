// Package transport is the realtime push client. It maintains a WebSocket
// session against the chat gateway and feeds every validated push event into
// the chatstate store's mutation primitives.
//
// The transport never mutates the store directly; all writes go through the
// store's idempotent primitives, so redelivery after a reconnect is safe.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	v1 "nestchat/chatwire/v1"
	"nestchat/cmd/internal/chatstate"
	"nestchat/cmd/internal/ids"
)

const (
	wsSubprotocolV1 = "nestchat.push.v1"

	wsDefaultDialTimeout  = 10 * time.Second
	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute

	wsDefaultHeartbeatEvery   = 25 * time.Second
	wsDefaultHeartbeatTimeout = 5 * time.Second
	wsMaxPingFailures         = 3

	wsDefaultReconnectMin = time.Second
	wsDefaultReconnectMax = 30 * time.Second

	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB
)

// Config carries the gateway endpoint, credentials, and session knobs.
type Config struct {
	// URL is the gateway endpoint, e.g. "wss://push.nest.example/ws".
	URL string

	// Token is the same opaque bearer credential used against the REST API.
	Token string

	DialTimeout     time.Duration
	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration

	// Reconnect backoff bounds. Backoff doubles per failed session up to Max
	// and resets after a session survives long enough to complete the
	// handshake.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = wsDefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = wsDefaultWriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = wsDefaultReadIdle
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = wsDefaultHeartbeatEvery
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = wsDefaultHeartbeatTimeout
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = wsDefaultReconnectMin
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = wsDefaultReconnectMax
	}
}

// Client is the realtime push session owner.
type Client struct {
	log   *slog.Logger
	store *chatstate.Store
	cfg   Config
}

// NewClient constructs a transport client bound to a store.
func NewClient(log *slog.Logger, store *chatstate.Store, cfg Config) (*Client, error) {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if store == nil {
		return nil, errors.New("transport: nil store")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("transport: missing gateway url")
	}
	cfg.applyDefaults()

	return &Client{log: log, store: store, cfg: cfg}, nil
}

// Run keeps a push session alive until the context is done, reconnecting
// with capped exponential backoff. It returns the context's error.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin

	for {
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.log.Info("ws.session.end", "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

// runSession dials the gateway, performs the hello handshake, and runs the
// read loop with a heartbeat goroutine until the session ends.
func (c *Client) runSession(ctx context.Context) error {
	dialCtx, dialCancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer dialCancel()

	opts := &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocolV1},
	}
	if c.cfg.Token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + c.cfg.Token}}
	}

	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, opts)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != "" && sp != wsSubprotocolV1 {
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol mismatch")
		return fmt.Errorf("subprotocol mismatch: got %q want %q", sp, wsSubprotocolV1)
	}

	conn.SetReadLimit(maxFrameBytes)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.sendHello(sessionCtx, conn); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		c.heartbeat(sessionCtx, conn, cancel)
	}()

	err = c.readLoop(sessionCtx, conn)
	cancel()

	select {
	case <-heartbeatDone:
	case <-time.After(time.Second):
	}
	return err
}

func (c *Client) sendHello(ctx context.Context, conn *websocket.Conn) error {
	payload, err := json.Marshal(v1.HelloPayload{Token: c.cfg.Token})
	if err != nil {
		return err
	}
	return c.writeEnvelope(ctx, conn, newEnvelope(v1.TypeHello, payload))
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	t := time.NewTicker(c.cfg.HeartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, c.cfg.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				failures++
				c.log.Info("ws.ping.fail", "failures", failures, "err", err)
				if failures >= wsMaxPingFailures {
					cancel()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		readCtx, readCancel := context.WithTimeout(ctx, c.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				return nil
			case readErrCtxDone:
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("read idle: %w", err)
			case readErrConnClosed:
				return fmt.Errorf("conn closed: %w", err)
			case readErrBadJSON:
				c.log.Info("ws.read.bad_json", "err", err)
				continue
			default:
				return fmt.Errorf("read: %w", err)
			}
		}

		if err := env.Validate(); err != nil {
			c.log.Info("ws.envelope.invalid", "err", err)
			continue
		}

		c.dispatch(env)
	}
}

// ---- envelope IO ----

func newEnvelope(typ string, payload json.RawMessage) v1.Envelope {
	id, _ := ids.NewULID(time.Now().UTC())
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      time.Now().UTC(),
		Payload: payload,
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, errBadJSON{err}
	}
	return env, nil
}

func (c *Client) writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope) error {
	ctx, cancel := context.WithTimeout(parent, c.cfg.WriteTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type errBadJSON struct{ err error }

func (e errBadJSON) Error() string { return "bad json: " + e.err.Error() }
func (e errBadJSON) Unwrap() error { return e.err }

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	var bad errBadJSON
	if errors.As(err, &bad) {
		return readErrBadJSON
	}
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}
