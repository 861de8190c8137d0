package chatstate

import "context"

// ChatService is the REST collaborator the store delegates all network I/O to.
//
// Requirements:
//   - Returned messages are fully normalized (strict schema, one attachment
//     kind at most); the store performs no response probing of its own.
//   - CreateConversation is idempotent server-side for a given user pair.
type ChatService interface {
	GetConversations(ctx context.Context, page, limit int) (ConversationPage, error)
	GetMessages(ctx context.Context, conversationID int64, page, limit int) (MessagePage, error)
	SendMessage(ctx context.Context, conversationID int64, in SendMessageInput) (Message, error)
	SendMessageWithFile(ctx context.Context, conversationID int64, in SendFileInput) (Message, error)
	CreateConversation(ctx context.Context, userID, targetUserID int64) (Conversation, error)
	MarkAsRead(ctx context.Context, conversationID int64) error
	GetUnreadCount(ctx context.Context, conversationID int64) (int, error)
	GetTotalUnreadCount(ctx context.Context) (int, error)
}

// ConversationPage is one page of the conversation list.
type ConversationPage struct {
	Conversations []Conversation
	Page          PageInfo
}

// MessagePage is one page of a conversation's messages.
type MessagePage struct {
	Messages []Message
	Page     PageInfo
}

// SendMessageInput describes a text-or-attachment send where the attachment,
// if any, is already hosted (no upload involved).
type SendMessageInput struct {
	Text          string
	Attachment    AttachmentKind
	AttachmentURL string
}

// SendFileInput describes an upload-then-send: the local file at FileURI is
// uploaded and the resulting message references the hosted copy.
type SendFileInput struct {
	Text     string
	FileURI  string
	FileName string
	MimeType string
}
