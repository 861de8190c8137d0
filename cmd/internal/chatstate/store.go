// Package chatstate owns the client-side chat state: the normalized
// conversation/message cache, unread bookkeeping, typing indicators, and all
// reconciliation between optimistic sends and server-confirmed messages.
//
// The store performs no network I/O. REST calls are delegated to a
// ChatService collaborator and push events arrive through the local mutation
// primitives (Apply*/Insert*/Set*), so every state transition funnels through
// one audited surface.
//
// Concurrency guarantees:
//   - All state is guarded by a single mutex; readers get copied snapshots.
//   - The mutex is never held across a network call, so overlapping
//     operations keep their last-writer-wins replacement semantics.
//   - Primitives are idempotent under redelivery.
package chatstate

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Store is the in-memory conversation/message cache.
type Store struct {
	log     *slog.Logger
	svc     ChatService
	metrics *Metrics

	// selfID identifies the session user. Inbound vs outbound classification
	// (unread increments, read receipts) hangs off it.
	selfID int64

	mu            sync.Mutex
	conversations []Conversation
	convPage      PageInfo
	messages      map[int64][]Message
	msgPages      map[int64]PageInfo
	unread        map[int64]int
	totalUnread   int
	typing        map[int64]map[int64]struct{}
	activeConv    int64 // 0 = no conversation open
	loading       bool
	sending       bool
	lastErr       string
}

// New constructs a Store bound to the given chat service collaborator.
// selfID is the authenticated user's id.
func New(log *slog.Logger, svc ChatService, selfID int64, m *Metrics) *Store {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Store{
		log:      log,
		svc:      svc,
		metrics:  m,
		selfID:   selfID,
		messages: make(map[int64][]Message),
		msgPages: make(map[int64]PageInfo),
		unread:   make(map[int64]int),
		typing:   make(map[int64]map[int64]struct{}),
	}
}

// ---- snapshots ----

// Conversations returns a copy of the conversation list in store order.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conversation(nil), s.conversations...)
}

// ConversationPageInfo returns the conversation-list pagination cursor.
func (s *Store) ConversationPageInfo() PageInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convPage
}

// Messages returns a copy of one conversation's message list (sorted ascending
// by creation time). A conversation with no loaded messages yields nil.
func (s *Store) Messages(conversationID int64) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	if msgs == nil {
		return nil
	}
	return append([]Message(nil), msgs...)
}

// MessagePageInfo returns the pagination cursor for one conversation's messages.
func (s *Store) MessagePageInfo(conversationID int64) (PageInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.msgPages[conversationID]
	return p, ok
}

// UnreadCount returns the known unread count for one conversation.
func (s *Store) UnreadCount(conversationID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[conversationID]
}

// TotalUnread returns the global unread total.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUnread
}

// TypingUsers returns the ids currently flagged as typing in a conversation.
func (s *Store) TypingUsers(conversationID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.typing[conversationID]
	if len(set) == 0 {
		return nil
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// ActiveConversation reports which conversation, if any, is being viewed.
func (s *Store) ActiveConversation() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConv, s.activeConv != 0
}

// Loading reports whether a list fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Sending reports whether a send operation is in flight.
func (s *Store) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// LastError returns the human-readable reason of the most recent failed
// operation, or "" if the last operation succeeded.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ---- local mutation primitives (driven by the realtime transport) ----

// ApplyConfirmedMessage inserts a server-confirmed message if its id is not
// already present, re-sorts the list, and updates the conversation preview.
// Inbound messages for a conversation that is not currently active bump the
// unread counters. Idempotent under redelivery.
func (s *Store) ApplyConfirmedMessage(conversationID int64, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.containsMessageIDLocked(conversationID, msg.ID) {
		s.log.Debug("store.message.duplicate", "conversation_id", conversationID, "message_id", msg.ID)
		return
	}

	msg.ConversationID = conversationID
	msg.Pending = false
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	sortMessages(s.messages[conversationID])
	s.updatePreviewLocked(msg)

	if msg.SenderID != s.selfID && s.activeConv != conversationID {
		s.unread[conversationID]++
		s.setTotalUnreadLocked(s.totalUnread + 1)
	}

	s.metrics.EventsApplied.WithLabelValues("message_new").Inc()
	s.log.Debug("store.message.applied", "conversation_id", conversationID, "message_id", msg.ID)
}

// InsertOptimisticMessage appends a pending message stamped with the current
// time. tempID is the caller-generated attempt id; it must be unique per send
// attempt and is later used to resolve or fail exactly this message.
func (s *Store) InsertOptimisticMessage(conversationID int64, tempID string, senderID int64, text, localFileURI string, kind AttachmentKind) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[conversationID] = append(s.messages[conversationID], Message{
		TempID:         tempID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Attachment:     kind,
		LocalFileURI:   localFileURI,
		CreatedAt:      now,
		UpdatedAt:      now,
		Pending:        true,
	})
	s.log.Debug("store.message.optimistic", "conversation_id", conversationID, "temp_id", tempID)
}

// SetTyping adds or removes a user from a conversation's typing set.
// Adding a present user and removing an absent one are both no-ops.
func (s *Store) SetTyping(conversationID, userID int64, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.typing[conversationID]
	if typing {
		if set == nil {
			set = make(map[int64]struct{})
			s.typing[conversationID] = set
		}
		set[userID] = struct{}{}
	} else if set != nil {
		delete(set, userID)
		if len(set) == 0 {
			delete(s.typing, conversationID)
		}
	}
	s.metrics.EventsApplied.WithLabelValues("typing").Inc()
}

// SetActiveConversation records which conversation is currently being viewed.
// Zero clears it. Callers use this to suppress new-message affordances and
// unread increments for the open thread.
func (s *Store) SetActiveConversation(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConv = conversationID
}

// ApplyReadReceipt marks the session user's outbound messages in the
// conversation as read, stamping at where no read timestamp exists yet.
func (s *Store) ApplyReadReceipt(conversationID, readerID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != s.selfID || msgs[i].Read {
			continue
		}
		msgs[i].Read = true
		if msgs[i].ReadAt == nil {
			t := at
			msgs[i].ReadAt = &t
		}
	}
	s.metrics.EventsApplied.WithLabelValues("read_receipt").Inc()
	s.log.Debug("store.read_receipt.applied", "conversation_id", conversationID, "reader_id", readerID)
}

// IncrementTotalUnread bumps the global unread total by one.
func (s *Store) IncrementTotalUnread() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTotalUnreadLocked(s.totalUnread + 1)
}

// DecrementTotalUnread lowers the global unread total by one, clamping at zero.
func (s *Store) DecrementTotalUnread() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTotalUnreadLocked(s.totalUnread - 1)
}

// SetTotalUnread overwrites the global unread total (clamped at zero).
func (s *Store) SetTotalUnread(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTotalUnreadLocked(n)
}

// ClearMessages drops one conversation's message list and pagination cursor.
// Used when a thread is closed or evicted, not for server-side deletion.
func (s *Store) ClearMessages(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, conversationID)
	delete(s.msgPages, conversationID)
}

// Reset restores the empty initial state. Used on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = nil
	s.convPage = PageInfo{}
	s.messages = make(map[int64][]Message)
	s.msgPages = make(map[int64]PageInfo)
	s.unread = make(map[int64]int)
	s.setTotalUnreadLocked(0)
	s.typing = make(map[int64]map[int64]struct{})
	s.activeConv = 0
	s.loading = false
	s.sending = false
	s.lastErr = ""

	s.log.Info("store.reset")
}

// ---- locked helpers ----

func (s *Store) containsMessageIDLocked(conversationID, messageID int64) bool {
	if messageID == 0 {
		return false
	}
	for _, m := range s.messages[conversationID] {
		if m.ID == messageID {
			return true
		}
	}
	return false
}

// updatePreviewLocked reflects msg into its conversation's last-message fields.
// Unknown conversations are left alone; they surface on the next list fetch.
func (s *Store) updatePreviewLocked(msg Message) {
	for i := range s.conversations {
		if s.conversations[i].ID != msg.ConversationID {
			continue
		}
		s.conversations[i].LastMessageText = msg.Text
		s.conversations[i].LastMessageAt = msg.CreatedAt
		s.conversations[i].LastSenderID = msg.SenderID
		return
	}
}

func (s *Store) setTotalUnreadLocked(n int) {
	if n < 0 {
		n = 0
	}
	s.totalUnread = n
	s.metrics.UnreadTotal.Set(float64(n))
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) setSending(v bool) {
	s.mu.Lock()
	s.sending = v
	s.mu.Unlock()
}

func (s *Store) recordError(op string, err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.log.Error("store."+op+".fail", "err", err)
}
