package messaging

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

type MessageID string

const (
	MinContentLength = 1
	MaxContentLength = 1000
	MaxAttachments   = 10
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// ParseMessageType maps the wire value onto a MessageType. Empty means text.
func ParseMessageType(raw string) (MessageType, error) {
	switch MessageType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MessageText:
		return MessageText, nil
	case MessageImage:
		return MessageImage, nil
	case MessageFile:
		return MessageFile, nil
	case MessageSystem:
		return MessageSystem, nil
	default:
		return "", ErrInvalidMessageType
	}
}

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is tagged by Kind; only the kinds declared above are accepted.
type Attachment struct {
	Kind     AttachmentKind
	URL      string
	Filename string
	Size     int64
}

func NewAttachment(kind, rawURL, filename string, size int64) (Attachment, error) {
	k := AttachmentKind(strings.ToLower(strings.TrimSpace(kind)))
	if k != AttachmentImage && k != AttachmentFile {
		return Attachment{}, ErrInvalidAttachment
	}
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Attachment{}, ErrInvalidAttachment
	}
	if size < 0 {
		return Attachment{}, ErrInvalidAttachment
	}
	return Attachment{
		Kind:     k,
		URL:      rawURL,
		Filename: strings.TrimSpace(filename),
		Size:     size,
	}, nil
}

type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	SenderName     string
	Content        string
	Type           MessageType
	Attachments    []Attachment
	IsRead         bool
	ReadAt         time.Time
	IsEdited       bool
	EditedAt       time.Time
	ReplyTo        MessageID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type NewMessageParams struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	SenderName     string
	Content        string
	Type           MessageType
	Attachments    []Attachment
	ReplyTo        MessageID
	Now            time.Time
}

func NewMessage(params NewMessageParams) (*Message, error) {
	if strings.TrimSpace(string(params.ID)) == "" ||
		strings.TrimSpace(string(params.ConversationID)) == "" ||
		strings.TrimSpace(string(params.SenderID)) == "" {
		return nil, ErrIDRequired
	}
	content, err := NormalizeContent(params.Content)
	if err != nil {
		return nil, err
	}
	msgType, err := ParseMessageType(string(params.Type))
	if err != nil {
		return nil, err
	}
	if len(params.Attachments) > MaxAttachments {
		return nil, ErrInvalidAttachment
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &Message{
		ID:             params.ID,
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		SenderName:     strings.TrimSpace(params.SenderName),
		Content:        content,
		Type:           msgType,
		Attachments:    append([]Attachment(nil), params.Attachments...),
		ReplyTo:        MessageID(strings.TrimSpace(string(params.ReplyTo))),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NormalizeContent trims surrounding whitespace and enforces the length bounds.
func NormalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(content)
	if n < MinContentLength || n > MaxContentLength {
		return "", ErrContentLength
	}
	return content, nil
}

// MarkRead is idempotent: the first read time sticks.
func (m *Message) MarkRead(now time.Time) bool {
	if m.IsRead {
		return false
	}
	now = now.UTC()
	m.IsRead = true
	m.ReadAt = now
	m.UpdatedAt = now
	return true
}

func (m *Message) Edit(editor UserID, content string, now time.Time) error {
	if editor != m.SenderID {
		return ErrNotSender
	}
	normalized, err := NormalizeContent(content)
	if err != nil {
		return err
	}
	now = now.UTC()
	m.Content = normalized
	m.IsEdited = true
	m.EditedAt = now
	m.UpdatedAt = now
	return nil
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Attachments = append([]Attachment(nil), m.Attachments...)
	return &out
}
