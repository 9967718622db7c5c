package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoResponder = errors.New("no responder configured")

// ReplyRequest is what a responder sees when asked for a reply.
type ReplyRequest struct {
	Thread Snapshot
	Model  string
}

// Responder synthesizes the assistant side of a conversation.
type Responder interface {
	Respond(ctx context.Context, req ReplyRequest) (string, error)
}

// MessageResponder is implemented by responders that produce the whole
// assistant message, such as one carrying a server-assigned id.
type MessageResponder interface {
	RespondMessage(ctx context.Context, req ReplyRequest) (Message, error)
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func(ctx context.Context, req ReplyRequest) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, req ReplyRequest) (string, error) {
	return f(ctx, req)
}

// Exchange is the outcome of one Submit call.
type Exchange struct {
	User  Message
	Reply *Message
	Err   error
}

// Submitter validates raw user input and appends it, plus an optional
// synthesized reply, to its thread.
type Submitter struct {
	thread    *Thread
	responder Responder
	logger    *zap.Logger
}

// NewSubmitter returns a submitter for thread. responder may be nil, in
// which case no reply is ever synthesized.
func NewSubmitter(thread *Thread, responder Responder, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{thread: thread, responder: responder, logger: logger}
}

func (s *Submitter) Thread() *Thread { return s.thread }

// Responder returns the configured responder, or nil.
func (s *Submitter) Responder() Responder { return s.responder }

// Accept trims raw and appends it as a user message. Empty input is
// rejected with a warning and leaves the thread untouched.
func (s *Submitter) Accept(raw string) (Message, bool) {
	content := strings.TrimSpace(raw)
	if content == "" {
		s.logger.Warn("input field is empty", zap.String("thread_id", s.thread.ID()))
		return Message{}, false
	}
	msg := NewUserMessage(content)
	s.thread.Append(msg)
	s.logger.Info("user input submitted",
		zap.String("thread_id", s.thread.ID()),
		zap.String("message_id", msg.ID),
		zap.Int("messages", s.thread.Len()),
	)
	return msg, true
}

// Reply asks the responder for an assistant message against the current
// thread state. The thread is not modified.
func (s *Submitter) Reply(ctx context.Context, model string) (Message, error) {
	if s.responder == nil {
		return Message{}, ErrNoResponder
	}
	return Respond(ctx, s.responder, ReplyRequest{Thread: s.thread.Snapshot(), Model: model})
}

// Respond runs responder against req and wraps the text as an assistant
// message; a MessageResponder's message is kept as is. It touches no
// thread, so it can run off the UI loop.
func Respond(ctx context.Context, responder Responder, req ReplyRequest) (Message, error) {
	if responder == nil {
		return Message{}, ErrNoResponder
	}
	if mr, ok := responder.(MessageResponder); ok {
		msg, err := mr.RespondMessage(ctx, req)
		if err != nil {
			return Message{}, fmt.Errorf("reply: %w", err)
		}
		msg.Role = RoleAssistant
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		return msg, nil
	}
	text, err := responder.Respond(ctx, req)
	if err != nil {
		return Message{}, fmt.Errorf("reply: %w", err)
	}
	return NewAssistantMessage(text), nil
}

// AppendReply records an assistant message produced by Reply or Respond.
func (s *Submitter) AppendReply(msg Message) {
	if msg.Role != RoleAssistant {
		msg = NewAssistantMessage(msg.Content)
	}
	s.thread.Append(msg)
}

// Submit runs the whole flow synchronously. ok is false when the input
// was rejected. A responder failure keeps the user message and is
// reported on Exchange.Err.
func (s *Submitter) Submit(ctx context.Context, raw string, model string) (Exchange, bool) {
	user, ok := s.Accept(raw)
	if !ok {
		return Exchange{}, false
	}
	ex := Exchange{User: user}
	if s.responder == nil {
		return ex, true
	}
	reply, err := s.Reply(ctx, model)
	if err != nil {
		s.logger.Error("reply failed", zap.String("thread_id", s.thread.ID()), zap.Error(err))
		ex.Err = err
		return ex, true
	}
	s.AppendReply(reply)
	ex.Reply = &reply
	return ex, true
}
