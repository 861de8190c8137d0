package chatapi

import (
	"errors"
	"testing"
	"time"

	"nestchat/cmd/internal/chatstate"
)

func validMessageDTO() messageDTO {
	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return messageDTO{
		ID:             1,
		ConversationID: 2,
		SenderID:       3,
		Text:           "hello",
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestResolveAttachment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*messageDTO)
		wantKind chatstate.AttachmentKind
		wantURL  string
		wantErr  bool
	}{
		{
			name:     "none",
			mutate:   func(d *messageDTO) {},
			wantKind: chatstate.AttachmentNone,
		},
		{
			name: "explicit image",
			mutate: func(d *messageDTO) {
				d.AttachmentType = "image"
				d.ImageURL = "https://cdn/x.jpg"
			},
			wantKind: chatstate.AttachmentImage,
			wantURL:  "https://cdn/x.jpg",
		},
		{
			name: "explicit video",
			mutate: func(d *messageDTO) {
				d.AttachmentType = "video"
				d.VideoURL = "https://cdn/x.mp4"
			},
			wantKind: chatstate.AttachmentVideo,
			wantURL:  "https://cdn/x.mp4",
		},
		{
			name: "derived image from url alone",
			mutate: func(d *messageDTO) {
				d.ImageURL = "https://cdn/x.jpg"
			},
			wantKind: chatstate.AttachmentImage,
			wantURL:  "https://cdn/x.jpg",
		},
		{
			name: "derived video from url alone",
			mutate: func(d *messageDTO) {
				d.VideoURL = "https://cdn/x.mp4"
			},
			wantKind: chatstate.AttachmentVideo,
			wantURL:  "https://cdn/x.mp4",
		},
		{
			name: "both urls rejected",
			mutate: func(d *messageDTO) {
				d.ImageURL = "https://cdn/x.jpg"
				d.VideoURL = "https://cdn/x.mp4"
			},
			wantErr: true,
		},
		{
			name: "explicit image without url rejected",
			mutate: func(d *messageDTO) {
				d.AttachmentType = "image"
			},
			wantErr: true,
		},
		{
			name: "explicit video without url rejected",
			mutate: func(d *messageDTO) {
				d.AttachmentType = "video"
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := validMessageDTO()
			tc.mutate(&d)

			kind, url, err := resolveAttachment(d)
			if tc.wantErr {
				if !errors.Is(err, ErrSchema) {
					t.Fatalf("err=%v want ErrSchema", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if kind != tc.wantKind || url != tc.wantURL {
				t.Fatalf("got (%q, %q) want (%q, %q)", kind, url, tc.wantKind, tc.wantURL)
			}
		})
	}
}

func TestNormalizeMessage_RejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*messageDTO)
	}{
		{"missing id", func(d *messageDTO) { d.ID = 0 }},
		{"missing conversation id", func(d *messageDTO) { d.ConversationID = 0 }},
		{"missing sender id", func(d *messageDTO) { d.SenderID = 0 }},
		{"missing created_at", func(d *messageDTO) { d.CreatedAt = time.Time{} }},
		{"unknown attachment type", func(d *messageDTO) { d.AttachmentType = "audio" }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := validMessageDTO()
			tc.mutate(&d)

			if _, err := normalizeMessage(d); !errors.Is(err, ErrSchema) {
				t.Fatalf("err=%v want ErrSchema", err)
			}
		})
	}
}

func TestNormalizeMessage_PreservesFields(t *testing.T) {
	t.Parallel()

	d := validMessageDTO()
	readAt := d.CreatedAt.Add(time.Minute)
	d.Read = true
	d.ReadAt = &readAt
	d.ImageURL = "https://cdn/x.jpg"

	m, err := normalizeMessage(d)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if m.ID != d.ID || m.ConversationID != d.ConversationID || m.SenderID != d.SenderID {
		t.Fatalf("ids lost: %+v", m)
	}
	if !m.Read || m.ReadAt == nil || !m.ReadAt.Equal(readAt) {
		t.Fatalf("read state lost: %+v", m)
	}
	if m.Attachment != chatstate.AttachmentImage || m.AttachmentURL != d.ImageURL {
		t.Fatalf("attachment lost: %+v", m)
	}
	if m.Pending {
		t.Fatalf("normalized messages are never pending")
	}
}

func TestNormalizeConversation_RejectsInvalid(t *testing.T) {
	t.Parallel()

	if _, err := normalizeConversation(conversationDTO{}); !errors.Is(err, ErrSchema) {
		t.Fatalf("err=%v want ErrSchema", err)
	}
	if _, err := normalizeConversation(conversationDTO{ID: 1, UnreadCount: -1}); !errors.Is(err, ErrSchema) {
		t.Fatalf("negative unread: err=%v want ErrSchema", err)
	}
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   *pageDTO
		want chatstate.PageInfo
	}{
		{
			name: "absent pagination falls back to request params",
			in:   nil,
			want: chatstate.PageInfo{Page: 2, PageSize: 20, TotalItems: 5, TotalPages: 1},
		},
		{
			name: "canonical fields pass through",
			in:   &pageDTO{Page: 3, PageSize: 10, TotalItems: 31, TotalPages: 4},
			want: chatstate.PageInfo{Page: 3, PageSize: 10, TotalItems: 31, TotalPages: 4},
		},
		{
			name: "limit/total aliases honored",
			in:   &pageDTO{Page: 1, Limit: 25, Total: 50},
			want: chatstate.PageInfo{Page: 1, PageSize: 25, TotalItems: 50, TotalPages: 2},
		},
		{
			name: "derived total pages rounds up",
			in:   &pageDTO{Page: 1, PageSize: 20, TotalItems: 41},
			want: chatstate.PageInfo{Page: 1, PageSize: 20, TotalItems: 41, TotalPages: 3},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := normalizePage(tc.in, 2, 20, 5)
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestShellResolution(t *testing.T) {
	t.Parallel()

	d := validMessageDTO()

	if got := (messageShell{Data: &d}).resolve(); got.ID != d.ID {
		t.Fatalf("data wrapper not resolved: %+v", got)
	}
	if got := (messageShell{Message: &d}).resolve(); got.ID != d.ID {
		t.Fatalf("message wrapper not resolved: %+v", got)
	}
	if got := (messageShell{messageDTO: d}).resolve(); got.ID != d.ID {
		t.Fatalf("bare shape not resolved: %+v", got)
	}

	list := messageListShell{Messages: []messageDTO{d}}
	if got := list.items(); len(got) != 1 {
		t.Fatalf("messages key not resolved: %v", got)
	}
	// data wins over per-resource keys when both appear
	list.Data = []messageDTO{d, d}
	if got := list.items(); len(got) != 2 {
		t.Fatalf("data key should take precedence: %v", got)
	}

	counts := []struct {
		in   countShell
		want int
	}{
		{countShell{Count: 4}, 4},
		{countShell{Total: 9}, 9},
		{countShell{Data: &struct {
			Count int `json:"count"`
			Total int `json:"total"`
		}{Count: 6}}, 6},
		{countShell{Data: &struct {
			Count int `json:"count"`
			Total int `json:"total"`
		}{Total: 8}}, 8},
		{countShell{}, 0},
	}
	for _, tc := range counts {
		if got := tc.in.resolve(); got != tc.want {
			t.Fatalf("count resolve=%d want=%d (%+v)", got, tc.want, tc.in)
		}
	}
}
