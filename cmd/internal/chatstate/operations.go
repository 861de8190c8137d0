package chatstate

import (
	"context"
	"time"
)

// Operations in this file follow one shape: set the busy flag, delegate to
// the chat service, then either apply the mutation and clear the error slot
// or record the failure and leave prior state intact. There are no retries;
// re-invoking the operation is the caller's job.
//
// After the delegated call resolves, the operation checks its context and
// silently discards the result if the caller has gone away. This is what
// keeps unmounted screens from clobbering fresher state.

// LoadConversations fetches one page of conversations and replaces the
// conversation list and its cursor wholesale. The unread map is reseeded from
// the unread annotations on the returned page.
func (s *Store) LoadConversations(ctx context.Context, page, pageSize int) error {
	s.setLoading(true)
	defer s.setLoading(false)

	res, err := s.svc.GetConversations(ctx, page, pageSize)
	if err != nil {
		s.recordError("conversations.load", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.log.Debug("store.conversations.load.stale", "err", err)
		return err
	}

	s.mu.Lock()
	s.conversations = res.Conversations
	s.convPage = res.Page

	s.unread = make(map[int64]int, len(res.Conversations))
	total := 0
	for _, c := range res.Conversations {
		if c.UnreadCount > 0 {
			s.unread[c.ID] = c.UnreadCount
			total += c.UnreadCount
		}
	}
	s.setTotalUnreadLocked(total)
	s.lastErr = ""
	s.mu.Unlock()

	s.log.Info("store.conversations.load", "count", len(res.Conversations), "page", res.Page.Page)
	return nil
}

// LoadMessages fetches one page of a conversation's messages and replaces
// that conversation's list (sorted ascending) and cursor wholesale. Other
// conversations are untouched.
func (s *Store) LoadMessages(ctx context.Context, conversationID int64, page, pageSize int) error {
	s.setLoading(true)
	defer s.setLoading(false)

	res, err := s.svc.GetMessages(ctx, conversationID, page, pageSize)
	if err != nil {
		s.recordError("messages.load", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.log.Debug("store.messages.load.stale", "conversation_id", conversationID, "err", err)
		return err
	}

	sortMessages(res.Messages)

	s.mu.Lock()
	s.messages[conversationID] = res.Messages
	s.msgPages[conversationID] = res.Page
	s.lastErr = ""
	s.mu.Unlock()

	s.log.Info("store.messages.load", "conversation_id", conversationID, "count", len(res.Messages))
	return nil
}

// SendMessage persists a text-or-hosted-attachment message through the chat
// service and appends the confirmed result, unless the realtime transport
// already delivered it.
func (s *Store) SendMessage(ctx context.Context, conversationID int64, in SendMessageInput) error {
	s.setSending(true)
	defer s.setSending(false)

	msg, err := s.svc.SendMessage(ctx, conversationID, in)
	if err != nil {
		s.metrics.SendFailures.Inc()
		s.recordError("message.send", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.log.Debug("store.message.send.stale", "conversation_id", conversationID, "err", err)
		return err
	}

	s.mu.Lock()
	if !s.containsMessageIDLocked(conversationID, msg.ID) {
		msg.ConversationID = conversationID
		msg.Pending = false
		s.messages[conversationID] = append(s.messages[conversationID], msg)
		sortMessages(s.messages[conversationID])
	}
	s.updatePreviewLocked(msg)
	s.lastErr = ""
	s.mu.Unlock()

	s.metrics.MessagesSent.Inc()
	s.log.Info("store.message.send", "conversation_id", conversationID, "message_id", msg.ID)
	return nil
}

// SendAttachment is the optimistic path: the caller inserts a pending message
// via InsertOptimisticMessage with tempID first, then invokes this with the
// same tempID. On success the placeholder is replaced in place by the
// confirmed message — or dropped when the realtime transport already
// delivered the confirmed id. On failure exactly the tempID message is marked
// failed (Pending=false, UploadError set).
func (s *Store) SendAttachment(ctx context.Context, conversationID int64, tempID string, in SendFileInput) error {
	s.setSending(true)
	defer s.setSending(false)

	msg, err := s.svc.SendMessageWithFile(ctx, conversationID, in)
	if err != nil {
		s.metrics.SendFailures.Inc()
		s.markSendFailed(tempID, err)
		s.recordError("message.send_file", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.log.Debug("store.message.send_file.stale", "conversation_id", conversationID, "err", err)
		return err
	}

	msg.ConversationID = conversationID
	msg.TempID = tempID
	msg.Pending = false
	msg.LocalFileURI = ""

	s.mu.Lock()
	msgs := s.messages[conversationID]
	pendingIdx := -1
	for i := range msgs {
		if msgs[i].Pending && msgs[i].TempID == tempID {
			pendingIdx = i
			break
		}
	}

	switch {
	case s.containsMessageIDLocked(conversationID, msg.ID):
		// Transport won the race: the confirmed message is already in the
		// list, so the placeholder just goes away.
		if pendingIdx >= 0 {
			s.messages[conversationID] = append(msgs[:pendingIdx], msgs[pendingIdx+1:]...)
		}
	case pendingIdx >= 0:
		msgs[pendingIdx] = msg
	default:
		s.messages[conversationID] = append(msgs, msg)
	}
	sortMessages(s.messages[conversationID])
	s.updatePreviewLocked(msg)
	s.lastErr = ""
	s.mu.Unlock()

	s.metrics.MessagesSent.Inc()
	s.log.Info("store.message.send_file", "conversation_id", conversationID, "message_id", msg.ID, "temp_id", tempID)
	return nil
}

// markSendFailed transitions the pending message with tempID to a failed
// state. When tempID is unknown (legacy callers that never inserted a
// placeholder under it), it falls back to the most recently created pending
// message across all conversations.
func (s *Store) markSendFailed(tempID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		convID int64
		idx    = -1
		latest time.Time
	)

	for cid, msgs := range s.messages {
		for i := range msgs {
			if !msgs[i].Pending {
				continue
			}
			if msgs[i].TempID == tempID {
				convID, idx = cid, i
				goto found
			}
			if idx == -1 || msgs[i].CreatedAt.After(latest) {
				convID, idx, latest = cid, i, msgs[i].CreatedAt
			}
		}
	}

found:
	if idx == -1 {
		s.log.Warn("store.message.fail.unmatched", "temp_id", tempID)
		return
	}

	msgs := s.messages[convID]
	msgs[idx].Pending = false
	msgs[idx].UploadError = cause.Error()
	s.log.Info("store.message.failed", "conversation_id", convID, "temp_id", msgs[idx].TempID)
}

// CreateOrGetConversation resolves (or creates) the conversation between two
// users. A conversation already known locally is left alone; a new one is
// inserted at the front of the list.
func (s *Store) CreateOrGetConversation(ctx context.Context, userID, targetUserID int64) (Conversation, error) {
	conv, err := s.svc.CreateConversation(ctx, userID, targetUserID)
	if err != nil {
		s.recordError("conversation.create", err)
		return Conversation{}, err
	}
	if err := ctx.Err(); err != nil {
		s.log.Debug("store.conversation.create.stale", "err", err)
		return Conversation{}, err
	}

	s.mu.Lock()
	exists := false
	for i := range s.conversations {
		if s.conversations[i].ID == conv.ID {
			exists = true
			break
		}
	}
	if !exists {
		s.conversations = append([]Conversation{conv}, s.conversations...)
	}
	s.lastErr = ""
	s.mu.Unlock()

	s.log.Info("store.conversation.create", "conversation_id", conv.ID, "existed", exists)
	return conv, nil
}

// MarkConversationRead marks a conversation read server-side, then applies
// the same locally: every message becomes read (stamping a read time only
// where missing), the global total drops by the conversation's previously
// known unread count (clamped at zero), and the per-conversation count
// resets. Nothing is mutated on failure.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID int64) error {
	if err := s.svc.MarkAsRead(ctx, conversationID); err != nil {
		s.recordError("conversation.mark_read", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.log.Debug("store.conversation.mark_read.stale", "conversation_id", conversationID, "err", err)
		return err
	}

	now := time.Now().UTC()

	s.mu.Lock()
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].Read {
			continue
		}
		msgs[i].Read = true
		if msgs[i].ReadAt == nil {
			t := now
			msgs[i].ReadAt = &t
		}
	}

	prev := s.unread[conversationID]
	s.setTotalUnreadLocked(s.totalUnread - prev)
	delete(s.unread, conversationID)

	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations[i].UnreadCount = 0
			break
		}
	}
	s.lastErr = ""
	s.mu.Unlock()

	s.log.Info("store.conversation.mark_read", "conversation_id", conversationID, "cleared", prev)
	return nil
}

// RefreshUnreadCount overwrites one conversation's unread counter with the
// server-reported value. Failures are logged and leave the counter untouched.
func (s *Store) RefreshUnreadCount(ctx context.Context, conversationID int64) error {
	n, err := s.svc.GetUnreadCount(ctx, conversationID)
	if err != nil {
		s.log.Error("store.unread.refresh.fail", "conversation_id", conversationID, "err", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if n > 0 {
		s.unread[conversationID] = n
	} else {
		delete(s.unread, conversationID)
	}
	s.mu.Unlock()
	return nil
}

// RefreshTotalUnread overwrites the global unread total with the
// server-reported value. Failures are logged and leave the total untouched.
func (s *Store) RefreshTotalUnread(ctx context.Context) error {
	n, err := s.svc.GetTotalUnreadCount(ctx)
	if err != nil {
		s.log.Error("store.unread.refresh_total.fail", "err", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.SetTotalUnread(n)
	return nil
}
