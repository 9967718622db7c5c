package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role tags the originator of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return fmt.Errorf("unknown message role %q", raw)
	}
	*r = role
	return nil
}

// Message is a single entry of a thread. It is a value type; the role
// is fixed at construction.
type Message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    Role   `json:"role"`
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Content: content,
		Role:    role,
	}
}

func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}
