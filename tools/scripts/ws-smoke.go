// Package main provides a CI-friendly smoke test for the Nestchat push gateway.
//
// It validates:
//   - handshake + subprotocol selection
//   - hello/ack session establishment
//   - that every pushed envelope is well-formed for the observe window
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	v1 "nestchat/chatwire/v1"
)

const (
	defaultSubprotocol = "nestchat.push.v1"
	maxReadBytes       = 64 << 10
)

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "push gateway URL")
		token   = flag.String("token", "", "bearer token (also sent in the hello payload)")
		timeout = flag.Duration("timeout", 7*time.Second, "per-step timeout")
		observe = flag.Duration("observe", 5*time.Second, "how long to watch pushed events after the handshake")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()

	conn, sessionID := mustConnect(root, *wsURL, *token, *timeout)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if *verbose {
		fmt.Printf("connected: session=%s\n", sessionID)
	}

	counts := observeEvents(root, conn, *observe, *verbose)

	var parts []string
	for typ, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", typ, n))
	}
	fmt.Printf("OK: session=%s events{%s}\n", sessionID, strings.Join(parts, " "))
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func mustConnect(parent context.Context, wsURL, token string, stepTimeout time.Duration) (*websocket.Conn, string) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	opts := &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
	}
	if strings.TrimSpace(token) != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + token}}
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, opts)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}

	if resp != nil {
		got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
		if got != "" && got != defaultSubprotocol {
			fatalf("subprotocol mismatch: got=%q want=%q", got, defaultSubprotocol)
		}
	}

	conn.SetReadLimit(maxReadBytes)

	hello := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeHello,
		ID:      fmt.Sprintf("smoke-hello-%d", time.Now().UnixNano()),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.HelloPayload{Token: token}),
	}
	mustWrite(parent, conn, hello, stepTimeout)

	ack := mustReadType(parent, conn, v1.TypeHelloAck, stepTimeout)

	var p v1.HelloAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal hello_ack payload: %v", err)
	}
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("hello_ack missing session_id")
	}
	return conn, p.SessionID
}

// observeEvents reads pushed envelopes until the window closes, failing the
// run on any malformed frame or server error envelope.
func observeEvents(parent context.Context, conn *websocket.Conn, window time.Duration, verbose bool) map[string]int {
	ctx, cancel := context.WithTimeout(parent, window)
	defer cancel()

	counts := make(map[string]int)
	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			if ctx.Err() != nil {
				return counts
			}
			if websocket.CloseStatus(err) != -1 {
				fatalf("gateway closed the session: %v", err)
			}
			fatalf("read: %v", err)
		}

		if env.Type == v1.TypeError {
			var ep v1.ErrorPayload
			_ = json.Unmarshal(env.Payload, &ep)
			fatalf("server error: code=%q msg=%q", ep.Code, ep.Message)
		}

		counts[env.Type]++
		if verbose {
			fmt.Printf("event: type=%s id=%s ts=%s\n", env.Type, env.ID, env.TS.Format(time.RFC3339))
		}
	}
}

func mustReadType(parent context.Context, conn *websocket.Conn, wantType string, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			fatalf("waiting for %q: %v", wantType, err)
		}
		if env.Type == wantType {
			return env
		}
		if env.Type == v1.TypeError {
			var ep v1.ErrorPayload
			_ = json.Unmarshal(env.Payload, &ep)
			fatalf("server error: code=%q msg=%q", ep.Code, ep.Message)
		}
		// Anything else pushed before the ack is tolerated and skipped.
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
		return v1.Envelope{}, fmt.Errorf("bad json: %w", err)
	}
	if err := env.Validate(); err != nil {
		return v1.Envelope{}, fmt.Errorf("bad envelope: %w", err)
	}
	return env, nil
}

func mustWrite(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
