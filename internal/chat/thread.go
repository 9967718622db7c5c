// Package chat holds the message thread model and the submission flow
// that feeds it.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Thread is an append-only, single-owner log of messages. It is not
// safe for concurrent use; the UI loop owns it.
type Thread struct {
	id        string
	messages  []Message
	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// Snapshot is a detached copy of a thread.
type Snapshot struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ThreadOption func(*Thread)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) ThreadOption {
	return func(t *Thread) {
		if now != nil {
			t.now = now
		}
	}
}

// NewThread returns an empty thread. An empty id is replaced with a
// random one.
func NewThread(id string, opts ...ThreadOption) *Thread {
	t := &Thread{id: id, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.id == "" {
		t.id = uuid.NewString()
	}
	t.createdAt = t.now()
	t.updatedAt = t.createdAt
	t.messages = []Message{}
	return t
}

func (t *Thread) ID() string           { return t.id }
func (t *Thread) CreatedAt() time.Time { return t.createdAt }
func (t *Thread) UpdatedAt() time.Time { return t.updatedAt }
func (t *Thread) Len() int             { return len(t.messages) }

// Append adds msg to the end of the thread and refreshes UpdatedAt.
// UpdatedAt never moves backwards, even if the clock does.
func (t *Thread) Append(msg Message) {
	t.messages = append(t.messages, msg)
	now := t.now()
	if now.Before(t.updatedAt) {
		now = t.updatedAt
	}
	t.updatedAt = now
}

// LastMessage returns the most recent message; ok is false when the
// thread is empty.
func (t *Thread) LastMessage() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Messages returns a copy of the thread's messages in arrival order.
func (t *Thread) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Thread) Snapshot() Snapshot {
	return Snapshot{
		ID:        t.id,
		Messages:  t.Messages(),
		CreatedAt: t.createdAt,
		UpdatedAt: t.updatedAt,
	}
}

// LastOfRole returns the most recent message with the given role.
func (s Snapshot) LastOfRole(role Role) (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == role {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}
