package chatstate

import (
	"sort"
	"time"
)

// AttachmentKind discriminates message attachments. A plain-text message
// carries AttachmentNone; image and video are mutually exclusive.
type AttachmentKind string

// Attachment kinds (wire-stable).
const (
	AttachmentNone  AttachmentKind = ""
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
)

// Conversation is one chat thread as known to the client.
//
// Conversations are created by a conversation-list fetch or by
// CreateOrGetConversation and are never deleted client-side.
type Conversation struct {
	ID              int64
	LastMessageText string
	LastMessageAt   time.Time
	LastSenderID    int64

	// UnreadCount is the server annotation delivered with the conversation
	// list. The live counter lives in the store's unread map; this field is
	// only the seed.
	UnreadCount int
}

// Message is one chat message within a conversation.
//
// Confirmed messages carry a server-assigned ID (> 0) and Pending=false.
// Optimistic messages carry ID=0, a client-generated TempID, and Pending=true
// until the send resolves.
type Message struct {
	ID             int64
	TempID         string
	ConversationID int64
	SenderID       int64
	Text           string

	Read   bool
	ReadAt *time.Time

	Attachment    AttachmentKind
	AttachmentURL string

	// LocalFileURI points at the file still uploading for an optimistic
	// attachment send. Cleared once the server confirms the message.
	LocalFileURI string

	CreatedAt time.Time
	UpdatedAt time.Time

	Pending     bool
	UploadError string
}

// PageInfo is a pagination cursor, replaced wholesale on each successful fetch.
type PageInfo struct {
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// sortMessages re-establishes the ascending-by-creation-time invariant.
// The sort is stable so same-timestamp messages keep their arrival order.
func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
