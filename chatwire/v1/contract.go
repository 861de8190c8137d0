// Package v1 defines the Nestchat realtime push contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between the transport client and tests to keep the wire
// protocol authoritative.
package v1

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a session handshake (client -> server).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the session handshake (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeMessageNew pushes a newly accepted message (server -> client).
	TypeMessageNew = "message_new"

	// TypeTyping pushes a typing-status change for a conversation member.
	TypeTyping = "typing"

	// TypeReadReceipt pushes a read receipt for a conversation.
	TypeReadReceipt = "read_receipt"

	// TypeUnreadTotal pushes the server-authoritative total unread count.
	TypeUnreadTotal = "unread_total"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeMessageNew,
		TypeTyping,
		TypeReadReceipt,
		TypeUnreadTotal,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// HelloPayload is sent by the client to initiate a session.
// The token is the same opaque bearer credential used against the REST API.
type HelloPayload struct {
	Token string `json:"token,omitempty"`
}

// HelloAckPayload carries the server-assigned session id.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
}

// MessageNewPayload is pushed when a message is accepted into a conversation.
type MessageNewPayload struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Text           string    `json:"text,omitempty"`
	AttachmentType string    `json:"attachment_type,omitempty"`
	AttachmentURL  string    `json:"attachment_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// TypingPayload signals that a user started or stopped composing.
type TypingPayload struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	Typing         bool  `json:"typing"`
}

// ReadReceiptPayload signals that a peer read a conversation up to ReadAt.
type ReadReceiptPayload struct {
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

// UnreadTotalPayload carries the server-side total unread count for the session user.
type UnreadTotalPayload struct {
	Total int `json:"total"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
