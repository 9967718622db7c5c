package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"altron/internal/backend"
	"altron/internal/chat"
	"altron/internal/config"
	"altron/internal/liveness"
	"altron/internal/reply"
)

type fakeModels struct {
	models []backend.Model
	calls  int
	query  backend.ModelQuery
}

func (f *fakeModels) FetchModels(_ context.Context, q backend.ModelQuery) []backend.Model {
	f.calls++
	f.query = q
	return f.models
}

type fakeHealth struct {
	status  liveness.Status
	updates chan liveness.Status
}

func newFakeHealth() *fakeHealth {
	return &fakeHealth{status: liveness.Checking, updates: make(chan liveness.Status, 1)}
}

func (f *fakeHealth) Status() liveness.Status          { return f.status }
func (f *fakeHealth) Updates() <-chan liveness.Status { return f.updates }

func testModel(t *testing.T, responder chat.Responder, models ...backend.Model) (model, *chat.Thread) {
	t.Helper()
	thread := chat.NewThread("thread-1")
	m, err := newModel(deps{
		submitter: chat.NewSubmitter(thread, responder, nil),
		models:    &fakeModels{models: models},
		health:    newFakeHealth(),
	})
	if err != nil {
		t.Fatalf("newModel: %v", err)
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model), thread
}

func TestNewModelReportsMissingElements(t *testing.T) {
	thread := chat.NewThread("t")
	cases := []struct {
		name string
		d    deps
	}{
		{"submitter", deps{models: &fakeModels{}, health: newFakeHealth()}},
		{"model selector", deps{submitter: chat.NewSubmitter(thread, nil, nil), health: newFakeHealth()}},
		{"connection indicator", deps{submitter: chat.NewSubmitter(thread, nil, nil), models: &fakeModels{}}},
		{"message thread", deps{submitter: chat.NewSubmitter(nil, nil, nil), models: &fakeModels{}, health: newFakeHealth()}},
	}
	for _, tc := range cases {
		_, err := newModel(tc.d)
		var missing missingElementError
		if !errors.As(err, &missing) {
			t.Fatalf("%s: expected missingElementError, got %v", tc.name, err)
		}
		if missing.name != tc.name {
			t.Fatalf("expected missing %q, got %q", tc.name, missing.name)
		}
	}
}

func TestEnterOnBlankInputIsNoop(t *testing.T) {
	m, thread := testModel(t, reply.Echo{})
	m.input.SetValue("   ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if thread.Len() != 0 {
		t.Fatalf("expected no messages, got %d", thread.Len())
	}
	if cmd != nil {
		t.Fatalf("expected no reply command for blank input")
	}
	if len(m.logs) == 0 || !strings.Contains(m.logs[len(m.logs)-1], "input field is empty") {
		t.Fatalf("expected warning in log pane, got %v", m.logs)
	}
	if m.input.Value() != "" {
		t.Fatalf("expected input to be cleared")
	}
}

func TestSubmitEchoRoundTrip(t *testing.T) {
	m, thread := testModel(t, reply.Echo{})
	cmd := m.submit("  hello ")
	if cmd == nil {
		t.Fatalf("expected reply command")
	}
	if !m.inflight {
		t.Fatalf("expected reply to be in flight")
	}
	if thread.Len() != 1 {
		t.Fatalf("expected user message appended before reply, got %d", thread.Len())
	}
	if again := m.submit("second"); again != nil || thread.Len() != 1 {
		t.Fatalf("expected submission to wait for the in-flight reply")
	}

	msg := cmd()
	next, _ := m.Update(msg)
	m = next.(model)
	if m.inflight {
		t.Fatalf("expected inflight cleared after reply")
	}
	msgs := thread.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("unexpected user message %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleAssistant || msgs[1].Content != "Echo: hello" {
		t.Fatalf("unexpected reply %+v", msgs[1])
	}
	if !strings.Contains(m.renderTimeline(), "Echo: hello") {
		t.Fatalf("timeline does not show the reply")
	}
}

func TestEnterWhileReplyInFlightKeepsDraft(t *testing.T) {
	m, thread := testModel(t, reply.Echo{})
	pending := m.submit("first")
	if pending == nil {
		t.Fatalf("expected reply command")
	}
	m.input.SetValue("second question")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if cmd != nil {
		t.Fatalf("expected no command while a reply is pending")
	}
	if m.input.Value() != "second question" {
		t.Fatalf("draft was discarded, input now %q", m.input.Value())
	}
	if thread.Len() != 1 {
		t.Fatalf("expected only the first message, got %d", thread.Len())
	}

	next, _ = m.Update(pending())
	m = next.(model)
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if cmd == nil || m.input.Value() != "" {
		t.Fatalf("expected the kept draft to be sent once the reply arrived")
	}
	last, _ := thread.LastMessage()
	if last.Role != chat.RoleUser || last.Content != "second question" {
		t.Fatalf("unexpected last message %+v", last)
	}
}

func TestSubmitWithoutResponder(t *testing.T) {
	m, thread := testModel(t, nil)
	if cmd := m.submit("hi"); cmd != nil {
		t.Fatalf("expected no command without responder")
	}
	if thread.Len() != 1 || m.inflight {
		t.Fatalf("expected one message and nothing in flight, got %d inflight=%v", thread.Len(), m.inflight)
	}
}

func TestReplyErrorSurfacesOnStatusLine(t *testing.T) {
	m, thread := testModel(t, reply.Echo{})
	m.inflight = true
	next, _ := m.Update(replyMsg{err: errors.New("backend down")})
	m = next.(model)
	if m.inflight || !strings.Contains(m.statusLine, "backend down") {
		t.Fatalf("unexpected state inflight=%v status=%q", m.inflight, m.statusLine)
	}
	if thread.Len() != 0 {
		t.Fatalf("failed reply must not append")
	}
}

func TestHealthUpdatesDriveIndicator(t *testing.T) {
	m, _ := testModel(t, nil)
	if !strings.Contains(m.renderIndicator(), "checking") {
		t.Fatalf("expected checking before first probe, got %q", m.renderIndicator())
	}
	for _, status := range []liveness.Status{liveness.Healthy, liveness.Unhealthy, liveness.Checking} {
		next, cmd := m.Update(healthMsg(status))
		m = next.(model)
		if cmd == nil {
			t.Fatalf("expected the health listener to be re-armed")
		}
		if !strings.Contains(m.renderIndicator(), status.String()) {
			t.Fatalf("expected indicator %q, got %q", status, m.renderIndicator())
		}
	}
	if !strings.Contains(m.View(), "checking") {
		t.Fatalf("expected footer to carry the indicator")
	}
}

func TestWaitHealth(t *testing.T) {
	ch := make(chan liveness.Status, 1)
	ch <- liveness.Healthy
	if got := waitHealth(ch)(); got != healthMsg(liveness.Healthy) {
		t.Fatalf("expected healthy msg, got %#v", got)
	}
	close(ch)
	if _, ok := waitHealth(ch)().(healthClosedMsg); !ok {
		t.Fatalf("expected healthClosedMsg on closed channel")
	}
}

func TestModelPicker(t *testing.T) {
	m, _ := testModel(t, nil)
	next, _ := m.Update(modelsMsg{models: []backend.Model{}})
	m = next.(model)
	if !strings.Contains(m.renderSidebar(), "no models") {
		t.Fatalf("expected empty-list marker in sidebar")
	}
	if m.selectedModelID() != "" {
		t.Fatalf("expected no selection, got %q", m.selectedModelID())
	}

	m.preferred = "qwen"
	models := []backend.Model{
		{ID: "a", Provider: "lmstudio", Type: backend.ModelChat},
		{ID: "qwen2.5", Alias: "qwen", Provider: "lmstudio", Type: backend.ModelChat},
		{ID: "c", Provider: "openai", Type: backend.ModelChat},
	}
	next, _ = m.Update(modelsMsg{models: models})
	m = next.(model)
	if m.selectedModelID() != "qwen2.5" {
		t.Fatalf("expected preferred alias to be selected, got %q", m.selectedModelID())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m = next.(model)
	if m.selectedModelID() != "c" {
		t.Fatalf("expected ctrl+n to advance, got %q", m.selectedModelID())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m = next.(model)
	if m.selectedModelID() != "a" {
		t.Fatalf("expected wrap-around, got %q", m.selectedModelID())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	m = next.(model)
	if m.selectedModelID() != "c" {
		t.Fatalf("expected ctrl+p to go back, got %q", m.selectedModelID())
	}

	// A refresh keeps the current pick when the backend still offers it.
	next, _ = m.Update(modelsMsg{models: []backend.Model{models[2], models[0]}})
	m = next.(model)
	if m.selectedModelID() != "c" {
		t.Fatalf("expected selection to survive refresh, got %q", m.selectedModelID())
	}
}

func TestRefreshModelsCommand(t *testing.T) {
	src := &fakeModels{models: []backend.Model{{ID: "m1", Provider: "p", Type: backend.ModelChat}}}
	thread := chat.NewThread("t")
	m, err := newModel(deps{
		submitter: chat.NewSubmitter(thread, nil, nil),
		models:    src,
		health:    newFakeHealth(),
		query:     backend.ModelQuery{Limit: 2, Type: backend.ModelChat},
	})
	if err != nil {
		t.Fatalf("newModel: %v", err)
	}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = next.(model)
	if cmd != nil {
		t.Fatalf("expected no refetch while the initial fetch is pending")
	}
	msg := m.fetchModelsCmd()()
	next, _ = m.Update(msg)
	m = next.(model)
	if src.query.Limit != 2 || src.query.Type != backend.ModelChat {
		t.Fatalf("query not forwarded: %+v", src.query)
	}
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = next.(model)
	if cmd == nil || !m.modelsLoading {
		t.Fatalf("expected ctrl+r to start a refetch")
	}
}

func TestApplyFlagsOverrideConfig(t *testing.T) {
	f, set, err := parseFlags([]string{"--backend-url", "http://cli.test/api/v1", "--reply-mode", "none", "--poll-interval", "2m"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := &config.Config{BackendURL: "http://file.test", Model: "keep", PollInterval: 30e9}
	applyFlags(cfg, f, set)
	if cfg.BackendURL != "http://cli.test/api/v1" || cfg.Reply.Mode != "none" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Model != "keep" {
		t.Fatalf("unset flag overwrote config: %q", cfg.Model)
	}
	if cfg.PollInterval != config.MaxPollInterval {
		t.Fatalf("expected poll interval clamped, got %s", cfg.PollInterval)
	}
	q := modelQuery(&config.Config{Models: config.ModelsConfig{Limit: 3, Type: "embedding"}})
	if q.Limit != 3 || q.Type != backend.ModelEmbedding {
		t.Fatalf("unexpected query %+v", q)
	}
}
