package transport

import (
	json "github.com/goccy/go-json"

	v1 "nestchat/chatwire/v1"
	"nestchat/cmd/internal/chatstate"
)

// dispatch routes one validated envelope to the matching store primitive.
// Unknown-but-valid types are logged and dropped; a malformed payload never
// reaches the store.
func (c *Client) dispatch(env v1.Envelope) {
	switch env.Type {
	case v1.TypeHelloAck:
		var p v1.HelloAckPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Info("ws.payload.invalid", "type", env.Type, "err", err)
			return
		}
		c.log.Info("ws.session.ready", "session_id", p.SessionID)

	case v1.TypeMessageNew:
		var p v1.MessageNewPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Info("ws.payload.invalid", "type", env.Type, "err", err)
			return
		}
		c.store.ApplyConfirmedMessage(p.ConversationID, pushedMessage(p))

	case v1.TypeTyping:
		var p v1.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Info("ws.payload.invalid", "type", env.Type, "err", err)
			return
		}
		c.store.SetTyping(p.ConversationID, p.UserID, p.Typing)

	case v1.TypeReadReceipt:
		var p v1.ReadReceiptPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Info("ws.payload.invalid", "type", env.Type, "err", err)
			return
		}
		c.store.ApplyReadReceipt(p.ConversationID, p.UserID, p.ReadAt)

	case v1.TypeUnreadTotal:
		var p v1.UnreadTotalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Info("ws.payload.invalid", "type", env.Type, "err", err)
			return
		}
		c.store.SetTotalUnread(p.Total)

	case v1.TypeError:
		var p v1.ErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Info("ws.payload.invalid", "type", env.Type, "err", err)
			return
		}
		c.log.Warn("ws.server.error", "code", p.Code, "message", p.Message)

	default:
		// hello is client->server only; anything else valid-but-unhandled
		// lands here.
		c.log.Debug("ws.envelope.ignored", "type", env.Type)
	}
}

// pushedMessage converts a push payload into the store's message shape.
func pushedMessage(p v1.MessageNewPayload) chatstate.Message {
	kind := chatstate.AttachmentKind(p.AttachmentType)
	switch kind {
	case chatstate.AttachmentImage, chatstate.AttachmentVideo:
	default:
		kind = chatstate.AttachmentNone
	}

	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = p.CreatedAt
	}

	return chatstate.Message{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		Text:           p.Text,
		Attachment:     kind,
		AttachmentURL:  p.AttachmentURL,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      updated,
	}
}
