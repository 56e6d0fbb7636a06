package messaging

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newPair(t *testing.T) *Conversation {
	t.Helper()
	conv, err := NewConversation(NewConversationParams{
		ID:           "c1",
		Participants: []Participant{{UserID: "alice", DisplayName: "Alice A"}, {UserID: "bob", DisplayName: "Bob B"}},
		ServiceID:    " svc-1 ",
		Now:          t0,
	})
	require.NoError(t, err)
	return conv
}

func TestNewConversation(t *testing.T) {
	t.Run("initial state", func(t *testing.T) {
		req := require.New(t)
		conv := newPair(t)
		req.True(conv.IsActive)
		req.Equal("svc-1", conv.ServiceID)
		req.Equal(0, conv.UnreadFor("alice"))
		req.Equal(0, conv.UnreadFor("bob"))
		req.Equal(t0, conv.LastMessage.Timestamp)
		req.Empty(conv.LastMessage.Content)
	})

	t.Run("rejects self conversation", func(t *testing.T) {
		_, err := NewConversation(NewConversationParams{
			ID:           "c1",
			Participants: []Participant{{UserID: "alice"}, {UserID: "alice"}},
		})
		require.ErrorIs(t, err, ErrSelfConversation)
	})

	t.Run("rejects wrong participant count", func(t *testing.T) {
		_, err := NewConversation(NewConversationParams{ID: "c1", Participants: []Participant{{UserID: "alice"}}})
		require.ErrorIs(t, err, ErrParticipantsCount)
	})

	t.Run("requires id", func(t *testing.T) {
		_, err := NewConversation(NewConversationParams{Participants: []Participant{{UserID: "a"}, {UserID: "b"}}})
		require.ErrorIs(t, err, ErrIDRequired)
	})
}

func TestConversationApplyMessage(t *testing.T) {
	t.Run("bumps only the recipient", func(t *testing.T) {
		req := require.New(t)
		conv := newPair(t)
		conv.ApplyMessage("Bonjour", "alice", t0.Add(time.Minute))
		conv.ApplyMessage("Ça va?", "alice", t0.Add(2*time.Minute))
		req.Equal(0, conv.UnreadFor("alice"))
		req.Equal(2, conv.UnreadFor("bob"))
		req.Equal("Ça va?", conv.LastMessage.Content)
		req.Equal(UserID("alice"), conv.LastMessage.SenderID)
		req.Equal(t0.Add(2*time.Minute), conv.UpdatedAt)
	})

	t.Run("timestamp never moves backwards", func(t *testing.T) {
		req := require.New(t)
		conv := newPair(t)
		conv.ApplyMessage("late", "bob", t0.Add(time.Hour))
		conv.ApplyMessage("early", "alice", t0.Add(time.Minute))
		req.Equal(t0.Add(time.Hour), conv.LastMessage.Timestamp)
		req.Equal("early", conv.LastMessage.Content)
	})

	t.Run("preview is truncated", func(t *testing.T) {
		conv := newPair(t)
		conv.ApplyMessage(strings.Repeat("é", 150), "alice", t0)
		require.Equal(t, SnippetLength, len([]rune(conv.LastMessage.Content)))
	})
}

func TestConversationReadAndArchive(t *testing.T) {
	req := require.New(t)
	conv := newPair(t)
	req.False(conv.MarkReadBy("bob", t0))
	conv.ApplyMessage("hi", "alice", t0.Add(time.Minute))
	req.True(conv.MarkReadBy("bob", t0.Add(2*time.Minute)))
	req.Equal(0, conv.UnreadFor("bob"))

	req.True(conv.VisibleTo("alice"))
	req.False(conv.VisibleTo("mallory"))
	req.True(conv.Archive(t0.Add(3 * time.Minute)))
	req.False(conv.Archive(t0.Add(4 * time.Minute)))
	req.False(conv.VisibleTo("alice"))
}

func TestConversationCounterpartAndClone(t *testing.T) {
	req := require.New(t)
	conv := newPair(t)
	other, ok := conv.Counterpart("alice")
	req.True(ok)
	req.Equal(UserID("bob"), other.UserID)
	_, ok = conv.Counterpart("mallory")
	req.False(ok)

	cp := conv.Clone()
	cp.UnreadCount["bob"] = 9
	cp.Participants[0].DisplayName = "changed"
	req.Equal(0, conv.UnreadFor("bob"))
	req.Equal("Alice A", conv.Participants[0].DisplayName)
}

func TestPairKey(t *testing.T) {
	require.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	require.NotEqual(t, PairKey("a", "b"), PairKey("a", "c"))
}

func TestNewMessage(t *testing.T) {
	base := NewMessageParams{ID: "m1", ConversationID: "c1", SenderID: "alice", Content: "  hello  ", Now: t0}

	t.Run("trims and defaults to text", func(t *testing.T) {
		req := require.New(t)
		msg, err := NewMessage(base)
		req.NoError(err)
		req.Equal("hello", msg.Content)
		req.Equal(MessageText, msg.Type)
		req.False(msg.IsRead)
		req.False(msg.IsEdited)
	})

	t.Run("content bounds", func(t *testing.T) {
		req := require.New(t)
		p := base
		p.Content = "   "
		_, err := NewMessage(p)
		req.ErrorIs(err, ErrContentLength)
		p.Content = strings.Repeat("x", MaxContentLength+1)
		_, err = NewMessage(p)
		req.ErrorIs(err, ErrContentLength)
		p.Content = strings.Repeat("x", MaxContentLength)
		_, err = NewMessage(p)
		req.NoError(err)
	})

	t.Run("unknown type", func(t *testing.T) {
		p := base
		p.Type = "video"
		_, err := NewMessage(p)
		require.ErrorIs(t, err, ErrInvalidMessageType)
	})

	t.Run("too many attachments", func(t *testing.T) {
		p := base
		for i := 0; i <= MaxAttachments; i++ {
			p.Attachments = append(p.Attachments, Attachment{Kind: AttachmentFile, URL: "https://cdn.example.com/f"})
		}
		_, err := NewMessage(p)
		require.ErrorIs(t, err, ErrInvalidAttachment)
	})
}

func TestNewAttachment(t *testing.T) {
	req := require.New(t)
	a, err := NewAttachment("IMAGE", " https://cdn.example.com/a.png ", "a.png", 42)
	req.NoError(err)
	req.Equal(AttachmentImage, a.Kind)
	req.Equal("https://cdn.example.com/a.png", a.URL)

	_, err = NewAttachment("audio", "https://cdn.example.com/a.mp3", "", 0)
	req.ErrorIs(err, ErrInvalidAttachment)
	_, err = NewAttachment("file", "not a url", "", 0)
	req.ErrorIs(err, ErrInvalidAttachment)
	_, err = NewAttachment("file", "https://cdn.example.com/f", "", -1)
	req.ErrorIs(err, ErrInvalidAttachment)
}

func TestMessageReadAndEdit(t *testing.T) {
	req := require.New(t)
	msg, err := NewMessage(NewMessageParams{ID: "m1", ConversationID: "c1", SenderID: "alice", Content: "hello", Now: t0})
	req.NoError(err)

	req.True(msg.MarkRead(t0.Add(time.Minute)))
	req.False(msg.MarkRead(t0.Add(time.Hour)))
	req.Equal(t0.Add(time.Minute), msg.ReadAt)

	req.ErrorIs(msg.Edit("bob", "hijack", t0), ErrNotSender)
	req.ErrorIs(msg.Edit("alice", " ", t0), ErrContentLength)
	req.NoError(msg.Edit("alice", " fixed ", t0.Add(2*time.Minute)))
	req.Equal("fixed", msg.Content)
	req.True(msg.IsEdited)
	req.Equal(t0.Add(2*time.Minute), msg.EditedAt)
}
