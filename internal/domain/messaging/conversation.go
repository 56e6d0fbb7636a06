package messaging

import (
	"sort"
	"strings"
	"time"
)

type ConversationID string
type UserID string

// SnippetLength bounds the denormalized last-message preview, in characters.
const SnippetLength = 100

type Participant struct {
	UserID      UserID
	DisplayName string
}

// LastMessage is the preview stored on the conversation. Timestamp never moves
// backwards.
type LastMessage struct {
	Content   string
	SenderID  UserID
	Timestamp time.Time
}

type Conversation struct {
	ID           ConversationID
	Participants []Participant
	ServiceID    string
	ServiceTitle string
	LastMessage  LastMessage
	UnreadCount  map[UserID]int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type NewConversationParams struct {
	ID           ConversationID
	Participants []Participant
	ServiceID    string
	ServiceTitle string
	Now          time.Time
}

func NewConversation(params NewConversationParams) (*Conversation, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if len(params.Participants) != 2 {
		return nil, ErrParticipantsCount
	}
	a, b := params.Participants[0], params.Participants[1]
	if strings.TrimSpace(string(a.UserID)) == "" || strings.TrimSpace(string(b.UserID)) == "" {
		return nil, ErrParticipantsCount
	}
	if a.UserID == b.UserID {
		return nil, ErrSelfConversation
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &Conversation{
		ID:           params.ID,
		Participants: []Participant{a, b},
		ServiceID:    strings.TrimSpace(params.ServiceID),
		ServiceTitle: strings.TrimSpace(params.ServiceTitle),
		LastMessage:  LastMessage{Timestamp: now},
		UnreadCount:  map[UserID]int{a.UserID: 0, b.UserID: 0},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Conversation) HasParticipant(id UserID) bool {
	_, ok := c.Participant(id)
	return ok
}

func (c *Conversation) Participant(id UserID) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Counterpart returns the participant that is not id.
func (c *Conversation) Counterpart(id UserID) (Participant, bool) {
	if !c.HasParticipant(id) {
		return Participant{}, false
	}
	for _, p := range c.Participants {
		if p.UserID != id {
			return p, true
		}
	}
	return Participant{}, false
}

// ParticipantIDs lists participant ids in stored order.
func (c *Conversation) ParticipantIDs() []UserID {
	out := make([]UserID, 0, len(c.Participants))
	for _, p := range c.Participants {
		out = append(out, p.UserID)
	}
	return out
}

// VisibleTo reports whether id may see the conversation at all. Archived
// conversations and strangers are treated alike.
func (c *Conversation) VisibleTo(id UserID) bool {
	return c != nil && c.IsActive && c.HasParticipant(id)
}

func (c *Conversation) UnreadFor(id UserID) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[id]
}

// NextTimestamp clamps at so message time never precedes the current preview.
func (c *Conversation) NextTimestamp(at time.Time) time.Time {
	at = at.UTC()
	if at.Before(c.LastMessage.Timestamp) {
		return c.LastMessage.Timestamp
	}
	return at
}

// ApplyMessage updates the preview and bumps the unread counter of every
// participant except the sender.
func (c *Conversation) ApplyMessage(content string, sender UserID, at time.Time) {
	at = c.NextTimestamp(at)
	c.LastMessage = LastMessage{
		Content:   Snippet(content),
		SenderID:  sender,
		Timestamp: at,
	}
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[UserID]int, len(c.Participants))
	}
	for _, p := range c.Participants {
		if p.UserID == sender {
			continue
		}
		c.UnreadCount[p.UserID]++
	}
	c.UpdatedAt = at
}

// MarkReadBy resets the reader's counter. It reports whether anything changed.
func (c *Conversation) MarkReadBy(id UserID, now time.Time) bool {
	if c.UnreadFor(id) == 0 {
		return false
	}
	c.UnreadCount[id] = 0
	c.touch(now)
	return true
}

func (c *Conversation) Archive(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	c.IsActive = false
	c.touch(now)
	return true
}

// Clone returns a deep copy safe to hand to callers of a shared store.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Participants = append([]Participant(nil), c.Participants...)
	out.UnreadCount = make(map[UserID]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		out.UnreadCount[k] = v
	}
	return &out
}

func (c *Conversation) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// Snippet truncates content to SnippetLength characters.
func Snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= SnippetLength {
		return content
	}
	return string(runes[:SnippetLength])
}

// PairKey is an order-independent key for a pair of users.
func PairKey(a, b UserID) string {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return ids[0] + "|" + ids[1]
}
