package transport

import (
	"io"
	"log/slog"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"nestchat/cmd/internal/chatstate"
	v1 "nestchat/chatwire/v1"
)

const testSelfID int64 = 100

func newDispatchClient(t *testing.T) (*Client, *chatstate.Store) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := chatstate.New(log, nil, testSelfID, nil)
	return &Client{log: log, store: store}, store
}

func envelope(t *testing.T, typ string, payload any) v1.Envelope {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return v1.Envelope{V: v1.Version, Type: typ, Payload: raw}
}

func TestDispatch_MessageNew(t *testing.T) {
	t.Parallel()

	c, store := newDispatchClient(t)
	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	c.dispatch(envelope(t, v1.TypeMessageNew, v1.MessageNewPayload{
		ID:             10,
		ConversationID: 5,
		SenderID:       200,
		Text:           "hey",
		AttachmentType: "image",
		AttachmentURL:  "https://cdn/10.jpg",
		CreatedAt:      at,
	}))

	msgs := store.Messages(5)
	if len(msgs) != 1 {
		t.Fatalf("messages=%d want=1", len(msgs))
	}
	m := msgs[0]
	if m.ID != 10 || m.Text != "hey" || m.Attachment != chatstate.AttachmentImage {
		t.Fatalf("unexpected message: %+v", m)
	}
	// UpdatedAt defaults to CreatedAt when the push omits it.
	if !m.UpdatedAt.Equal(at) {
		t.Fatalf("updated_at=%v want=%v", m.UpdatedAt, at)
	}
	if got := store.UnreadCount(5); got != 1 {
		t.Fatalf("unread=%d want=1", got)
	}
}

func TestDispatch_MessageNew_UnknownAttachmentKindDropped(t *testing.T) {
	t.Parallel()

	c, store := newDispatchClient(t)
	c.dispatch(envelope(t, v1.TypeMessageNew, v1.MessageNewPayload{
		ID:             11,
		ConversationID: 5,
		SenderID:       200,
		AttachmentType: "audio",
		CreatedAt:      time.Now().UTC(),
	}))

	msgs := store.Messages(5)
	if len(msgs) != 1 || msgs[0].Attachment != chatstate.AttachmentNone {
		t.Fatalf("unknown kind should degrade to none: %+v", msgs)
	}
}

func TestDispatch_Typing(t *testing.T) {
	t.Parallel()

	c, store := newDispatchClient(t)

	c.dispatch(envelope(t, v1.TypeTyping, v1.TypingPayload{ConversationID: 3, UserID: 200, Typing: true}))
	if got := store.TypingUsers(3); len(got) != 1 || got[0] != 200 {
		t.Fatalf("typing=%v want=[200]", got)
	}

	c.dispatch(envelope(t, v1.TypeTyping, v1.TypingPayload{ConversationID: 3, UserID: 200, Typing: false}))
	if got := store.TypingUsers(3); got != nil {
		t.Fatalf("typing=%v want nil", got)
	}
}

func TestDispatch_ReadReceipt(t *testing.T) {
	t.Parallel()

	c, store := newDispatchClient(t)
	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	store.ApplyConfirmedMessage(3, chatstate.Message{ID: 1, ConversationID: 3, SenderID: testSelfID, Text: "mine", CreatedAt: at})

	readAt := at.Add(time.Minute)
	c.dispatch(envelope(t, v1.TypeReadReceipt, v1.ReadReceiptPayload{ConversationID: 3, UserID: 200, ReadAt: readAt}))

	msgs := store.Messages(3)
	if !msgs[0].Read || msgs[0].ReadAt == nil || !msgs[0].ReadAt.Equal(readAt) {
		t.Fatalf("receipt not applied: %+v", msgs[0])
	}
}

func TestDispatch_UnreadTotal(t *testing.T) {
	t.Parallel()

	c, store := newDispatchClient(t)
	c.dispatch(envelope(t, v1.TypeUnreadTotal, v1.UnreadTotalPayload{Total: 12}))
	if got := store.TotalUnread(); got != 12 {
		t.Fatalf("total=%d want=12", got)
	}
}

func TestDispatch_MalformedPayloadDropped(t *testing.T) {
	t.Parallel()

	c, store := newDispatchClient(t)
	c.dispatch(v1.Envelope{V: v1.Version, Type: v1.TypeMessageNew, Payload: json.RawMessage(`"not-an-object"`)})
	c.dispatch(v1.Envelope{V: v1.Version, Type: v1.TypeUnreadTotal, Payload: json.RawMessage(`{`)})

	if got := store.TotalUnread(); got != 0 {
		t.Fatalf("malformed payload mutated state: total=%d", got)
	}
}
