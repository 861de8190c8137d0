package chatapi

import "time"

// Wire DTOs. The backend has grown a few response shells over time (bare
// objects, "data" wrappers, per-resource keys), so every shell field that has
// been observed in the wild is declared here and resolved in normalize.go.
// Nothing outside this package deals with wire shapes.

type conversationDTO struct {
	ID              int64     `json:"id" validate:"required"`
	LastMessageText string    `json:"last_message_text"`
	LastMessageAt   time.Time `json:"last_message_at"`
	LastSenderID    int64     `json:"last_sender_id"`
	UnreadCount     int       `json:"unread_count" validate:"min=0"`
}

type messageDTO struct {
	ID             int64      `json:"id" validate:"required"`
	ConversationID int64      `json:"conversation_id" validate:"required"`
	SenderID       int64      `json:"sender_id" validate:"required"`
	Text           string     `json:"text"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"read_at"`
	AttachmentType string     `json:"attachment_type" validate:"omitempty,oneof=image video"`
	ImageURL       string     `json:"image_url"`
	VideoURL       string     `json:"video_url"`
	CreatedAt      time.Time  `json:"created_at" validate:"required"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type pageDTO struct {
	Page       int `json:"page" validate:"min=0"`
	PageSize   int `json:"page_size"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type conversationListShell struct {
	Data          []conversationDTO `json:"data"`
	Conversations []conversationDTO `json:"conversations"`
	Items         []conversationDTO `json:"items"`
	Pagination    *pageDTO          `json:"pagination"`
	Meta          *pageDTO          `json:"meta"`
}

type messageListShell struct {
	Data       []messageDTO `json:"data"`
	Messages   []messageDTO `json:"messages"`
	Items      []messageDTO `json:"items"`
	Pagination *pageDTO     `json:"pagination"`
	Meta       *pageDTO     `json:"meta"`
}

type messageShell struct {
	Data    *messageDTO `json:"data"`
	Message *messageDTO `json:"message"`

	// Bare shape: the message fields live at the top level.
	messageDTO
}

type conversationShell struct {
	Data         *conversationDTO `json:"data"`
	Conversation *conversationDTO `json:"conversation"`

	conversationDTO
}

type countShell struct {
	Data *struct {
		Count int `json:"count"`
		Total int `json:"total"`
	} `json:"data"`
	Count int `json:"count"`
	Total int `json:"total"`
}

type sendMessageReq struct {
	Text           string `json:"text,omitempty"`
	AttachmentType string `json:"attachment_type,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
}

type createConversationReq struct {
	UserID       int64 `json:"user_id"`
	TargetUserID int64 `json:"target_user_id"`
}
