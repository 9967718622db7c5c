// Package reply provides the assistant-side responders of the chat
// client.
package reply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"altron/internal/backend"
	"altron/internal/chat"
)

const (
	DefaultCannedText  = "This is a mock AI response. Connect your backend API to get real responses."
	DefaultCannedDelay = time.Second
)

// Mode selects a responder.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeEcho    Mode = "echo"
	ModeCanned  Mode = "canned"
	ModeBackend Mode = "backend"
	ModeOpenAI  Mode = "openai"
)

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeNone, ModeEcho, ModeCanned, ModeBackend, ModeOpenAI:
		return m, nil
	case "":
		return ModeEcho, nil
	default:
		return "", fmt.Errorf("unknown reply mode %q (want none|echo|canned|backend|openai)", raw)
	}
}

// Echo repeats the latest user message.
type Echo struct{}

func (Echo) Respond(_ context.Context, req chat.ReplyRequest) (string, error) {
	user, ok := req.Thread.LastOfRole(chat.RoleUser)
	if !ok {
		return "", fmt.Errorf("echo: thread has no user message")
	}
	return "Echo: " + user.Content, nil
}

// Canned returns a fixed text after a delay.
type Canned struct {
	Text  string
	Delay time.Duration
}

func (c Canned) Respond(ctx context.Context, _ chat.ReplyRequest) (string, error) {
	text := c.Text
	if strings.TrimSpace(text) == "" {
		text = DefaultCannedText
	}
	if c.Delay <= 0 {
		return text, nil
	}
	timer := time.NewTimer(c.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return text, nil
	}
}

// Converser is the slice of backend.Client the Backend responder needs.
type Converser interface {
	Converse(ctx context.Context, model string, thread chat.Snapshot) (chat.Message, error)
}

var _ Converser = (*backend.Client)(nil)

// Backend forwards the thread to the backend's converse endpoint.
type Backend struct {
	Client Converser
	// Model is used when the request carries none.
	Model string
}

func (b Backend) Respond(ctx context.Context, req chat.ReplyRequest) (string, error) {
	msg, err := b.RespondMessage(ctx, req)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// RespondMessage returns the backend's reply with its own id.
func (b Backend) RespondMessage(ctx context.Context, req chat.ReplyRequest) (chat.Message, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = b.Model
	}
	if model == "" {
		return chat.Message{}, fmt.Errorf("backend: no model selected")
	}
	return b.Client.Converse(ctx, model, req.Thread)
}
