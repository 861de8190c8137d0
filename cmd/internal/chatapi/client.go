// Package chatapi is the REST chat service client. It owns the HTTP surface
// described by the backend (conversations, messages, uploads, read marks,
// unread counters) and normalizes every response into the strict types the
// chatstate store consumes.
package chatapi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"

	"nestchat/cmd/internal/chatstate"
)

const defaultTimeout = 15 * time.Second

// Config carries the chat service endpoint and credentials.
type Config struct {
	// BaseURL is the API origin, e.g. "https://api.nest.example".
	BaseURL string

	// Token is the opaque bearer credential attached to every request.
	Token string

	// Timeout bounds each request end to end. Zero means the default.
	Timeout time.Duration
}

// Client implements chatstate.ChatService over HTTP.
type Client struct {
	log  *slog.Logger
	http *resty.Client
}

var _ chatstate.ChatService = (*Client)(nil)

// NewClient constructs a chat service client.
func NewClient(log *slog.Logger, cfg Config) (*Client, error) {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: missing base url", ErrConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}
	hc.JSONMarshal = json.Marshal
	hc.JSONUnmarshal = json.Unmarshal

	return &Client{log: log, http: hc}, nil
}

// GetConversations fetches one page of the conversation list.
func (c *Client) GetConversations(ctx context.Context, page, limit int) (chatstate.ConversationPage, error) {
	var shell conversationListShell

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&shell).
		Get("/api/chat/conversations")
	if err := requestErr("get conversations", resp, err); err != nil {
		return chatstate.ConversationPage{}, err
	}

	dtos := shell.items()
	out := chatstate.ConversationPage{
		Conversations: make([]chatstate.Conversation, 0, len(dtos)),
		Page:          normalizePage(shell.page(), page, limit, len(dtos)),
	}
	for _, d := range dtos {
		conv, err := normalizeConversation(d)
		if err != nil {
			return chatstate.ConversationPage{}, err
		}
		out.Conversations = append(out.Conversations, conv)
	}
	return out, nil
}

// GetMessages fetches one page of a conversation's messages.
func (c *Client) GetMessages(ctx context.Context, conversationID int64, page, limit int) (chatstate.MessagePage, error) {
	var shell messageListShell

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(conversationID, 10)).
		SetQueryParams(map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&shell).
		Get("/api/chat/conversations/{id}/messages")
	if err := requestErr("get messages", resp, err); err != nil {
		return chatstate.MessagePage{}, err
	}

	dtos := shell.items()
	out := chatstate.MessagePage{
		Messages: make([]chatstate.Message, 0, len(dtos)),
		Page:     normalizePage(shell.page(), page, limit, len(dtos)),
	}
	for _, d := range dtos {
		msg, err := normalizeMessage(d)
		if err != nil {
			return chatstate.MessagePage{}, err
		}
		out.Messages = append(out.Messages, msg)
	}
	return out, nil
}

// SendMessage persists a text-or-hosted-attachment message.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, in chatstate.SendMessageInput) (chatstate.Message, error) {
	body := sendMessageReq{
		Text:           in.Text,
		AttachmentType: string(in.Attachment),
	}
	switch in.Attachment {
	case chatstate.AttachmentImage:
		body.ImageURL = in.AttachmentURL
	case chatstate.AttachmentVideo:
		body.VideoURL = in.AttachmentURL
	}

	var shell messageShell
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(conversationID, 10)).
		SetBody(body).
		SetResult(&shell).
		Post("/api/chat/conversations/{id}/messages")
	if err := requestErr("send message", resp, err); err != nil {
		return chatstate.Message{}, err
	}

	return normalizeMessage(shell.resolve())
}

// SendMessageWithFile uploads the local file and persists the resulting
// attachment message in one request (multipart).
func (c *Client) SendMessageWithFile(ctx context.Context, conversationID int64, in chatstate.SendFileInput) (chatstate.Message, error) {
	var shell messageShell
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(conversationID, 10)).
		SetFile("file", in.FileURI).
		SetFormData(map[string]string{
			"text":      in.Text,
			"file_name": in.FileName,
			"mime_type": in.MimeType,
		}).
		SetResult(&shell).
		Post("/api/chat/conversations/{id}/messages/file")
	if err := requestErr("send message with file", resp, err); err != nil {
		return chatstate.Message{}, err
	}

	return normalizeMessage(shell.resolve())
}

// CreateConversation idempotently resolves the conversation for a user pair.
func (c *Client) CreateConversation(ctx context.Context, userID, targetUserID int64) (chatstate.Conversation, error) {
	var shell conversationShell
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createConversationReq{UserID: userID, TargetUserID: targetUserID}).
		SetResult(&shell).
		Post("/api/chat/conversations")
	if err := requestErr("create conversation", resp, err); err != nil {
		return chatstate.Conversation{}, err
	}

	return normalizeConversation(shell.resolve())
}

// MarkAsRead marks all messages of a conversation read server-side.
func (c *Client) MarkAsRead(ctx context.Context, conversationID int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(conversationID, 10)).
		Post("/api/chat/conversations/{id}/read")
	return requestErr("mark as read", resp, err)
}

// GetUnreadCount returns the unread counter for one conversation.
func (c *Client) GetUnreadCount(ctx context.Context, conversationID int64) (int, error) {
	var shell countShell
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(conversationID, 10)).
		SetResult(&shell).
		Get("/api/chat/conversations/{id}/unread-count")
	if err := requestErr("get unread count", resp, err); err != nil {
		return 0, err
	}
	return shell.resolve(), nil
}

// GetTotalUnreadCount returns the unread total across all conversations.
func (c *Client) GetTotalUnreadCount(ctx context.Context) (int, error) {
	var shell countShell
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&shell).
		Get("/api/chat/unread-count")
	if err := requestErr("get total unread count", resp, err); err != nil {
		return 0, err
	}
	return shell.resolve(), nil
}

// requestErr folds transport errors and non-2xx statuses into one error shape.
func requestErr(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %w", op, &StatusError{
			Status: resp.StatusCode(),
			Body:   strings.TrimSpace(string(resp.Body())),
		})
	}
	return nil
}
