package reply

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"altron/internal/chat"
)

func requestWith(messages ...chat.Message) chat.ReplyRequest {
	thread := chat.NewThread("t")
	for _, m := range messages {
		thread.Append(m)
	}
	return chat.ReplyRequest{Thread: thread.Snapshot()}
}

func TestEcho(t *testing.T) {
	req := requestWith(chat.NewUserMessage("first"), chat.NewAssistantMessage("Echo: first"), chat.NewUserMessage("hello"))
	got, err := Echo{}.Respond(context.Background(), req)
	if err != nil {
		t.Fatalf("echo: %v", err)
	}
	if got != "Echo: hello" {
		t.Fatalf("expected echo of latest user message, got %q", got)
	}
	if _, err := (Echo{}).Respond(context.Background(), requestWith()); err == nil {
		t.Fatalf("expected error on a thread without user messages")
	}
}

func TestCannedDefaultsAndDelay(t *testing.T) {
	start := time.Now()
	got, err := Canned{Delay: 15 * time.Millisecond}.Respond(context.Background(), requestWith())
	if err != nil {
		t.Fatalf("canned: %v", err)
	}
	if got != DefaultCannedText {
		t.Fatalf("expected default text, got %q", got)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("expected the delay to be honoured")
	}
}

func TestCannedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Canned{Text: "x", Delay: time.Hour}).Respond(ctx, requestWith()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeConverser struct {
	model string
	err   error
}

func (f *fakeConverser) Converse(_ context.Context, model string, thread chat.Snapshot) (chat.Message, error) {
	f.model = model
	if f.err != nil {
		return chat.Message{}, f.err
	}
	msg := chat.NewAssistantMessage("reply to " + thread.ID)
	msg.ID = "srv-" + thread.ID
	return msg, nil
}

func TestBackendModelSelection(t *testing.T) {
	fake := &fakeConverser{}
	b := Backend{Client: fake, Model: "fallback"}

	if _, err := b.Respond(context.Background(), requestWith(chat.NewUserMessage("x"))); err != nil {
		t.Fatalf("backend: %v", err)
	}
	if fake.model != "fallback" {
		t.Fatalf("expected fallback model, got %q", fake.model)
	}
	req := requestWith(chat.NewUserMessage("x"))
	req.Model = "picked"
	got, err := b.Respond(context.Background(), req)
	if err != nil || got != "reply to t" {
		t.Fatalf("unexpected reply %q err=%v", got, err)
	}
	if fake.model != "picked" {
		t.Fatalf("expected picked model, got %q", fake.model)
	}
	if _, err := (Backend{Client: fake}).Respond(context.Background(), requestWith()); err == nil {
		t.Fatalf("expected error without any model")
	}
}

func TestBackendKeepsServerMessageID(t *testing.T) {
	var r chat.Responder = Backend{Client: &fakeConverser{}, Model: "m"}
	if _, ok := r.(chat.MessageResponder); !ok {
		t.Fatalf("expected Backend to return whole messages")
	}
	msg, err := chat.Respond(context.Background(), r, requestWith(chat.NewUserMessage("x")))
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if msg.ID != "srv-t" || msg.Role != chat.RoleAssistant || msg.Content != "reply to t" {
		t.Fatalf("server message not preserved: %+v", msg)
	}
	if _, err := chat.Respond(context.Background(), Backend{Client: &fakeConverser{err: errors.New("down")}, Model: "m"}, requestWith()); err == nil {
		t.Fatalf("expected converse error to surface")
	}
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{"": ModeEcho, "ECHO": ModeEcho, " canned ": ModeCanned, "none": ModeNone, "backend": ModeBackend, "openai": ModeOpenAI} {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseMode("telepathy"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestFromMode(t *testing.T) {
	r, err := FromMode(ModeNone, Deps{})
	if err != nil || r != nil {
		t.Fatalf("expected nil responder for none, got %v %v", r, err)
	}
	if _, err := FromMode(ModeBackend, Deps{}); err == nil {
		t.Fatalf("expected backend mode to require a client")
	}
	r, err = FromMode(ModeCanned, Deps{CannedText: "hi"})
	if err != nil {
		t.Fatalf("canned: %v", err)
	}
	if c, ok := r.(Canned); !ok || c.Text != "hi" {
		t.Fatalf("unexpected canned responder %#v", r)
	}
	r, err = FromMode(ModeOpenAI, Deps{DefaultModel: "m"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if o, ok := r.(*OpenAI); !ok || o.model != "m" {
		t.Fatalf("expected openai responder to inherit default model, got %#v", r)
	}
}

func TestOpenAIRespond(t *testing.T) {
	var seen struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&seen)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" hi there "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "lm-studio", Model: "local"})
	got, err := o.Respond(context.Background(), requestWith(chat.NewUserMessage("q"), chat.NewAssistantMessage("a"), chat.NewUserMessage("q2")))
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if got != "hi there" {
		t.Fatalf("unexpected content %q", got)
	}
	if seen.Model != "local" || len(seen.Messages) != 3 {
		t.Fatalf("unexpected request %+v", seen)
	}
	if seen.Messages[1].Role != "assistant" || seen.Messages[2].Content != "q2" {
		t.Fatalf("history not mapped in order: %+v", seen.Messages)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()
	o := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, Model: "m"})
	if _, err := o.Respond(context.Background(), requestWith(chat.NewUserMessage("q"))); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
