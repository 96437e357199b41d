package model

import (
	"strings"
	"time"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn represents one message within a chat session.
type ChatTurn struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	IsError   bool      `json:"isError,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is the aggregate root for a conversation with the library or a
// single document. ID stays empty until the session is saved.
type ChatSession struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Turns       []ChatTurn `json:"messages"`
	Collections []string   `json:"collections"`
	DocumentID  string     `json:"documentId,omitempty"`
	Starred     bool       `json:"starred"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func NewChatSession(now time.Time) *ChatSession {
	return &ChatSession{
		Turns:       make([]ChatTurn, 0, 8),
		Collections: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *ChatSession) AddTurn(role ChatRole, content string, isError bool, now time.Time) ChatTurn {
	t := ChatTurn{Role: role, Content: content, IsError: isError, Timestamp: now}
	s.Turns = append(s.Turns, t)
	s.UpdatedAt = now
	return t
}

// RecentTurns returns at most the last n turns.
func (s *ChatSession) RecentTurns(n int) []ChatTurn {
	if n <= 0 || len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// Scoped reports whether the session restricts search to some collections.
func (s *ChatSession) Scoped() bool {
	return len(s.Collections) > 0
}

// DeriveTitle uses the first user message, cut to 50 characters.
func (s *ChatSession) DeriveTitle() string {
	for _, t := range s.Turns {
		if t.Role != RoleUser {
			continue
		}
		r := []rune(t.Content)
		if len(r) > 50 {
			return string(r[:50]) + "..."
		}
		return t.Content
	}
	return "Untitled Chat"
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Turns = append([]ChatTurn(nil), s.Turns...)
	c.Collections = append([]string{}, s.Collections...)
	return &c
}

// FormatTurns renders turns as "User: ..." / "Assistant: ..." lines.
func FormatTurns(turns []ChatTurn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Role == RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}
