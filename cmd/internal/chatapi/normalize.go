package chatapi

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"nestchat/cmd/internal/chatstate"
)

// The normalization boundary: wire DTOs are validated and converted into the
// one strict schema the store consumes. Any shell ambiguity or invalid record
// stops here as ErrSchema; ad hoc field probing never leaks past this file.

var validate = validator.New()

func normalizeConversation(d conversationDTO) (chatstate.Conversation, error) {
	if err := validate.Struct(d); err != nil {
		return chatstate.Conversation{}, fmt.Errorf("%w: conversation: %v", ErrSchema, err)
	}
	return chatstate.Conversation{
		ID:              d.ID,
		LastMessageText: d.LastMessageText,
		LastMessageAt:   d.LastMessageAt,
		LastSenderID:    d.LastSenderID,
		UnreadCount:     d.UnreadCount,
	}, nil
}

func normalizeMessage(d messageDTO) (chatstate.Message, error) {
	if err := validate.Struct(d); err != nil {
		return chatstate.Message{}, fmt.Errorf("%w: message %d: %v", ErrSchema, d.ID, err)
	}

	kind, url, err := resolveAttachment(d)
	if err != nil {
		return chatstate.Message{}, err
	}

	return chatstate.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Text:           d.Text,
		Read:           d.Read,
		ReadAt:         d.ReadAt,
		Attachment:     kind,
		AttachmentURL:  url,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

// resolveAttachment reconciles the three ways the backend expresses an
// attachment (explicit type, image_url shell, video_url shell) into one kind.
// Image and video are mutually exclusive.
func resolveAttachment(d messageDTO) (chatstate.AttachmentKind, string, error) {
	if d.ImageURL != "" && d.VideoURL != "" {
		return chatstate.AttachmentNone, "", fmt.Errorf("%w: message %d carries both image and video urls", ErrSchema, d.ID)
	}

	switch d.AttachmentType {
	case string(chatstate.AttachmentImage):
		if d.ImageURL == "" {
			return chatstate.AttachmentNone, "", fmt.Errorf("%w: message %d: attachment_type=image without image_url", ErrSchema, d.ID)
		}
		return chatstate.AttachmentImage, d.ImageURL, nil
	case string(chatstate.AttachmentVideo):
		if d.VideoURL == "" {
			return chatstate.AttachmentNone, "", fmt.Errorf("%w: message %d: attachment_type=video without video_url", ErrSchema, d.ID)
		}
		return chatstate.AttachmentVideo, d.VideoURL, nil
	}

	// No explicit type: derive from whichever url is present.
	if d.ImageURL != "" {
		return chatstate.AttachmentImage, d.ImageURL, nil
	}
	if d.VideoURL != "" {
		return chatstate.AttachmentVideo, d.VideoURL, nil
	}
	return chatstate.AttachmentNone, "", nil
}

func normalizePage(p *pageDTO, fallbackPage, fallbackSize, count int) chatstate.PageInfo {
	if p == nil {
		return chatstate.PageInfo{
			Page:       fallbackPage,
			PageSize:   fallbackSize,
			TotalItems: count,
			TotalPages: 1,
		}
	}

	info := chatstate.PageInfo{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}
	if info.Page == 0 {
		info.Page = fallbackPage
	}
	if info.PageSize == 0 {
		info.PageSize = p.Limit
	}
	if info.PageSize == 0 {
		info.PageSize = fallbackSize
	}
	if info.TotalItems == 0 {
		info.TotalItems = p.Total
	}
	if info.TotalPages == 0 && info.PageSize > 0 {
		info.TotalPages = (info.TotalItems + info.PageSize - 1) / info.PageSize
	}
	return info
}

func (s conversationListShell) items() []conversationDTO {
	switch {
	case s.Data != nil:
		return s.Data
	case s.Conversations != nil:
		return s.Conversations
	default:
		return s.Items
	}
}

func (s conversationListShell) page() *pageDTO {
	if s.Pagination != nil {
		return s.Pagination
	}
	return s.Meta
}

func (s messageListShell) items() []messageDTO {
	switch {
	case s.Data != nil:
		return s.Data
	case s.Messages != nil:
		return s.Messages
	default:
		return s.Items
	}
}

func (s messageListShell) page() *pageDTO {
	if s.Pagination != nil {
		return s.Pagination
	}
	return s.Meta
}

func (s messageShell) resolve() messageDTO {
	switch {
	case s.Data != nil:
		return *s.Data
	case s.Message != nil:
		return *s.Message
	default:
		return s.messageDTO
	}
}

func (s conversationShell) resolve() conversationDTO {
	switch {
	case s.Data != nil:
		return *s.Data
	case s.Conversation != nil:
		return *s.Conversation
	default:
		return s.conversationDTO
	}
}

func (s countShell) resolve() int {
	if s.Data != nil {
		if s.Data.Count != 0 {
			return s.Data.Count
		}
		return s.Data.Total
	}
	if s.Count != 0 {
		return s.Count
	}
	return s.Total
}
